package web

import (
	"bytes"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/catchlogs/internal/domain"
	"github.com/vbonduro/catchlogs/internal/service"
	"github.com/vbonduro/catchlogs/internal/weather"
)

const maxPhotoSize = 50 * 1024 * 1024 // 50 MB

// maxFormSize leaves room for the text fields alongside a full-size photo.
const maxFormSize = maxPhotoSize + 1<<20

// allowedImageTypes is the set of MIME types accepted for uploaded photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniffing standard
// (and therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// parseForm accepts either a multipart or a urlencoded body.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	err := r.ParseMultipartForm(maxPhotoSize)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	return err
}

// readPhoto returns the "photo" file of a multipart form, or nil when none was
// sent. The content type is sniffed, never taken from the client.
func (s *Server) readPhoto(r *http.Request) (*service.PhotoUpload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewValidationError("photo", "could not be read")
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, domain.NewValidationError("photo", "could not be read")
	}
	if len(data) == 0 {
		return nil, nil
	}

	mimeType, ok := allowedImageMIME(data)
	if !ok {
		return nil, domain.NewValidationError("photo", "unsupported image format")
	}
	return &service.PhotoUpload{
		Filename:    header.Filename,
		ContentType: mimeType,
		Data:        bytes.NewReader(data),
	}, nil
}

// entryInput reads the editable entry fields from a parsed form.
func (s *Server) entryInput(r *http.Request) (service.EntryInput, error) {
	in := service.EntryInput{
		Species: r.FormValue("fishType"),
		Tackle:  r.FormValue("tackle"),
	}

	var err error
	if in.Length, err = optionalFloat(r, "length"); err != nil {
		return in, err
	}
	if in.Weight, err = optionalFloat(r, "weight"); err != nil {
		return in, err
	}
	if notes := r.FormValue("notes"); notes != "" {
		in.Notes = &notes
	}

	if raw := strings.TrimSpace(r.FormValue("dateTime")); raw != "" {
		at, err := weather.ParseDateTime(raw, s.loc)
		if err != nil {
			return in, domain.NewValidationError("dateTime", "is not a valid date and time")
		}
		in.DateTime = at
	}
	return in, nil
}

func optionalFloat(r *http.Request, key string) (*float64, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.NewValidationError(key, "must be a number")
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, domain.NewValidationError(key, "must be a finite number")
	}
	return &v, nil
}

func requiredFloat(r *http.Request, key string) (float64, error) {
	v, err := optionalFloat(r, key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, domain.NewValidationError(key, "is required")
	}
	return *v, nil
}
