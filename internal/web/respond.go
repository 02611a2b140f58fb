package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vbonduro/catchlogs/internal/domain"
)

const ownerHeader = "X-User-ID"

var errNoOwner = errors.New("missing " + ownerHeader + " header")

// ownerID returns the caller's id as set by the identity proxy in front of
// the server. It writes a 401 and returns false when the header is absent.
func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(ownerHeader)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errNoOwner.Error()})
		return "", false
	}
	return id, true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		w.WriteHeader(status)
		return
	}
	// Encode before writing the status so a failure can still become a 500.
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		body = []byte(`{"error":"internal error"}`)
	} else {
		w.WriteHeader(status)
	}
	body = append(body, '\n')
	if _, err := w.Write(body); err != nil {
		slog.Error("write response failed", "error", err)
	}
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsReference(err):
		return http.StatusNotFound
	case domain.IsStorage(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
