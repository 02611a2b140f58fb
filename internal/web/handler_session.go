package web

import (
	"encoding/json"
	"net/http"
)

type tackleState struct {
	Tackle  *string `json:"tackle"`
	Visible *bool   `json:"visible"`
}

func (s *Server) tackleState(owner string) tackleState {
	tackle, visible := s.sessions.Tackle(owner), s.sessions.Visible(owner)
	return tackleState{Tackle: &tackle, Visible: &visible}
}

func (s *Server) handleGetTackle(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.tackleState(owner))
}

// handleSetTackle updates whichever of tackle and visible the body carries.
func (s *Server) handleSetTackle(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req tackleState
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Tackle != nil {
		s.sessions.SetTackle(owner, *req.Tackle)
	}
	if req.Visible != nil {
		s.sessions.SetVisible(owner, *req.Visible)
	}
	writeJSON(w, http.StatusOK, s.tackleState(owner))
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	s.sessions.Clear(owner)
	w.WriteHeader(http.StatusNoContent)
}

type purgeResponse struct {
	EntriesDeleted int64  `json:"entriesDeleted"`
	PinsDeleted    int64  `json:"pinsDeleted"`
	PhotosRemoved  int    `json:"photosRemoved"`
	PhotoWarning   string `json:"photoWarning,omitempty"`
}

// handleDeleteAccount removes everything stored for the caller, session
// state included.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	result, err := s.service.PurgeOwner(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sessions.Clear(owner)
	writeJSON(w, http.StatusOK, purgeResponse{
		EntriesDeleted: result.EntriesDeleted,
		PinsDeleted:    result.PinsDeleted,
		PhotosRemoved:  result.PhotosRemoved,
		PhotoWarning:   warning(result.PhotoErr),
	})
}
