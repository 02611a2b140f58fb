package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/catchlogs/internal/objectstore"
)

// handlePublicObject serves a photo by its public URL.
func (s *Server) handlePublicObject(w http.ResponseWriter, r *http.Request) {
	s.serveObject(w, r, r.PathValue("path"))
}

// handleSignedObject serves a photo by a signed URL, rejecting missing,
// expired or mismatched tokens.
func (s *Server) handleSignedObject(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if err := s.blobs.VerifyToken(path, r.URL.Query().Get("token")); err != nil {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "invalid or expired token"})
		return
	}
	s.serveObject(w, r, path)
}

func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, path string) {
	if r.PathValue("bucket") != s.blobs.Name() {
		http.NotFound(w, r)
		return
	}

	reader, mimeType, err := s.blobs.Open(r.Context(), path)
	if err != nil {
		if !errors.Is(err, objectstore.ErrNotFound) {
			s.logger.Warn("open photo failed", "path", path, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "path", path, "error", err)
	}
}
