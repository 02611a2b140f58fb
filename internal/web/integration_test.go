package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/catchlogs/internal/db"
	"github.com/vbonduro/catchlogs/internal/domain"
	"github.com/vbonduro/catchlogs/internal/objectstore/local"
	"github.com/vbonduro/catchlogs/internal/photo"
	"github.com/vbonduro/catchlogs/internal/service"
	"github.com/vbonduro/catchlogs/internal/session"
	"github.com/vbonduro/catchlogs/internal/store"
	"github.com/vbonduro/catchlogs/internal/web"
)

const (
	photoBase = "http://photos.test"
	bucket    = "catch-photos"
)

// minimalJPEG is 512 bytes with the JPEG magic bytes header followed by zeros.
var minimalJPEG = func() []byte {
	b := make([]byte, 512)
	b[0] = 0xFF
	b[1] = 0xD8
	b[2] = 0xFF
	b[3] = 0xE0
	return b
}()

// fixedWeather returns the same snapshot for every lookup.
type fixedWeather struct{}

func (fixedWeather) Resolve(context.Context, float64, float64, time.Time) *domain.WeatherSnapshot {
	temp, dir, vis := 21.5, 90.0, 12000.0
	cond := "Clear sky"
	return &domain.WeatherSnapshot{Temperature: &temp, WindDirection: &dir, Visibility: &vis, Condition: &cond}
}

type testServer struct {
	*httptest.Server
}

// newTestServer wires a real server over a fresh SQLite database and a
// temporary local bucket. A non-empty signingKey enables signed photo URLs.
func newTestServer(t *testing.T, signingKey string) *testServer {
	t.Helper()
	database, err := db.OpenForTesting()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs, err := local.NewBucket(t.TempDir(), bucket, photoBase, local.WithSigningKey(signingKey))
	require.NoError(t, err)

	svc := service.NewJournalService(
		store.NewJournal(database),
		photo.NewManager(blobs, bucket, logger),
		blobs,
		fixedWeather{},
		time.Hour,
		logger,
	)
	srv := httptest.NewServer(web.NewServer(svc, session.New(0), blobs, time.UTC, logger))
	t.Cleanup(func() {
		srv.Close()
		_ = database.Close()
	})
	return &testServer{srv}
}

func (s *testServer) do(t *testing.T, owner, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, body)
	require.NoError(t, err)
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *testServer) doJSON(t *testing.T, owner, method, path string, in any) *http.Response {
	t.Helper()
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return s.do(t, owner, method, path, body, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type pinJSON struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Entries   []entryJSON `json:"entries"`
}

type entryJSON struct {
	ID              int64    `json:"id"`
	PinID           int64    `json:"pinId"`
	Species         string   `json:"fishType"`
	Length          *float64 `json:"length"`
	Tackle          string   `json:"tackle"`
	PhotoURL        *string  `json:"photoUrl"`
	DateTime        string   `json:"dateTime"`
	WindCompass     *string  `json:"windCompass"`
	VisibilityLabel *string  `json:"visibilityLabel"`
	Weather         struct {
		Temperature *float64 `json:"temperature"`
		Condition   *string  `json:"weatherCondition"`
	} `json:"weather"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func (s *testServer) createPin(t *testing.T, owner string, lat, lng float64) pinJSON {
	t.Helper()
	resp := s.doJSON(t, owner, http.MethodPost, "/pins", map[string]any{"latitude": lat, "longitude": lng})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[pinJSON](t, resp)
}

// entryForm builds a multipart entry form. A nil photo sends no file part.
func entryForm(t *testing.T, fields map[string]string, photo []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if photo != nil {
		fw, err := w.CreateFormFile("photo", "catch.jpg")
		require.NoError(t, err)
		_, err = fw.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func catchFields(pinID int64) map[string]string {
	return map[string]string{
		"pinId":    strconv.FormatInt(pinID, 10),
		"fishType": "Bass",
		"length":   "14.5",
		"tackle":   "Spinnerbait",
		"dateTime": "2024-06-01T08:30",
	}
}

type createResponse struct {
	Entry            entryJSON `json:"entry"`
	WeatherAvailable bool      `json:"weatherAvailable"`
}

func (s *testServer) createEntry(t *testing.T, owner string, pinID int64, photo []byte) entryJSON {
	t.Helper()
	body, ct := entryForm(t, catchFields(pinID), photo)
	resp := s.do(t, owner, http.MethodPost, "/entries", body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[createResponse](t, resp).Entry
}

// fetchPhoto downloads a photo URL issued by the bucket from the test server.
func (s *testServer) fetchPhoto(t *testing.T, photoURL string) *http.Response {
	t.Helper()
	require.True(t, strings.HasPrefix(photoURL, photoBase))
	resp, err := s.Client().Get(s.URL + strings.TrimPrefix(photoURL, photoBase))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestIntegration_MissingOwner(t *testing.T) {
	srv := newTestServer(t, "")

	resp := srv.do(t, "", http.MethodGet, "/pins", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, decode[errorJSON](t, resp).Error)
}

func TestIntegration_CreateEntryWithPhoto(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	srv := newTestServer(t, "")
	pin := srv.createPin(t, "u1", 44.5, -79.25)
	assert.Contains(t, pin.Name, "Location ")

	body, ct := entryForm(t, catchFields(pin.ID), minimalJPEG)
	resp := srv.do(t, "u1", http.MethodPost, "/entries", body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	created := decode[createResponse](t, resp)
	assert.True(t, created.WeatherAvailable)
	entry := created.Entry
	assert.Equal(t, "Bass", entry.Species)
	assert.Equal(t, 14.5, *entry.Length)
	assert.Equal(t, 21.5, *entry.Weather.Temperature)
	assert.Equal(t, "E", *entry.WindCompass)
	assert.Equal(t, "10+ km", *entry.VisibilityLabel)

	require.NotNil(t, entry.PhotoURL)
	assert.Contains(t, *entry.PhotoURL, "/storage/v1/object/public/"+bucket+"/u1/")

	photoResp := srv.fetchPhoto(t, *entry.PhotoURL)
	require.Equal(t, http.StatusOK, photoResp.StatusCode)
	assert.Equal(t, "image/jpeg", photoResp.Header.Get("Content-Type"))
	got, err := io.ReadAll(photoResp.Body)
	require.NoError(t, err)
	assert.Equal(t, minimalJPEG, got)

	// The last-used tackle is remembered for the next entry form.
	tackle := decode[map[string]any](t, srv.do(t, "u1", http.MethodGet, "/session/tackle", nil, ""))
	assert.Equal(t, "Spinnerbait", tackle["tackle"])
	assert.Equal(t, true, tackle["visible"])
}

func TestIntegration_CreateEntryRejections(t *testing.T) {
	srv := newTestServer(t, "")
	pin := srv.createPin(t, "u1", 44.5, -79.25)

	fields := catchFields(pin.ID)
	delete(fields, "fishType")
	body, ct := entryForm(t, fields, nil)
	resp := srv.do(t, "u1", http.MethodPost, "/entries", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, ct = entryForm(t, catchFields(pin.ID), []byte("%PDF-1.4 not an image"))
	resp = srv.do(t, "u1", http.MethodPost, "/entries", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, ct = entryForm(t, catchFields(pin.ID+100), nil)
	resp = srv.do(t, "u1", http.MethodPost, "/entries", body, ct)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, decode[errorJSON](t, resp).Error, "drop a new pin")

	// Another owner cannot add to the pin.
	body, ct = entryForm(t, catchFields(pin.ID), nil)
	resp = srv.do(t, "u2", http.MethodPost, "/entries", body, ct)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_CreatePinValidation(t *testing.T) {
	srv := newTestServer(t, "")

	resp := srv.doJSON(t, "u1", http.MethodPost, "/pins", map[string]any{"latitude": 95.0, "longitude": 10.0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.doJSON(t, "u1", http.MethodPost, "/pins", map[string]any{"latitude": 45.0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, "u1", http.MethodPost, "/pins",
		strings.NewReader(url.Values{"latitude": {"45"}, "longitude": {"-80"}, "name": {"Dock"}}.Encode()),
		"application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Dock", decode[pinJSON](t, resp).Name)
}

func TestIntegration_DeleteLastEntryRemovesPin(t *testing.T) {
	srv := newTestServer(t, "")
	pin := srv.createPin(t, "u1", 44.5, -79.25)
	first := srv.createEntry(t, "u1", pin.ID, minimalJPEG)
	second := srv.createEntry(t, "u1", pin.ID, nil)

	resp := srv.do(t, "u1", http.MethodDelete, "/entries/"+strconv.FormatInt(first.ID, 10), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]any](t, resp)
	assert.Equal(t, false, out["pinDeleted"])
	assert.Nil(t, out["photoWarning"])

	assert.Equal(t, http.StatusNotFound, srv.fetchPhoto(t, *first.PhotoURL).StatusCode)

	resp = srv.do(t, "u1", http.MethodDelete, "/entries/"+strconv.FormatInt(second.ID, 10), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, resp)["pinDeleted"])

	pins := decode[[]pinJSON](t, srv.do(t, "u1", http.MethodGet, "/pins", nil, ""))
	assert.Empty(t, pins)

	resp = srv.do(t, "u1", http.MethodDelete, "/entries/"+strconv.FormatInt(second.ID, 10), nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_AbandonPin(t *testing.T) {
	srv := newTestServer(t, "")
	empty := srv.createPin(t, "u1", 44.5, -79.25)
	used := srv.createPin(t, "u1", 45.5, -78.25)
	srv.createEntry(t, "u1", used.ID, nil)

	resp := srv.do(t, "u1", http.MethodDelete, "/pins/"+strconv.FormatInt(used.ID, 10), nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, "u1", http.MethodDelete, "/pins/"+strconv.FormatInt(empty.ID, 10), nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	pins := decode[[]pinJSON](t, srv.do(t, "u1", http.MethodGet, "/pins", nil, ""))
	require.Len(t, pins, 1)
	assert.Equal(t, used.ID, pins[0].ID)
	assert.Len(t, pins[0].Entries, 1)
}

func TestIntegration_UpdateEntryPhoto(t *testing.T) {
	srv := newTestServer(t, "")
	pin := srv.createPin(t, "u1", 44.5, -79.25)
	entry := srv.createEntry(t, "u1", pin.ID, minimalJPEG)
	path := "/entries/" + strconv.FormatInt(entry.ID, 10)

	type updateResponse struct {
		Entry        entryJSON `json:"entry"`
		PhotoWarning string    `json:"photoWarning"`
	}

	// Sending back the URL we were given keeps the photo.
	fields := catchFields(pin.ID)
	fields["fishType"] = "Smallmouth Bass"
	fields["photoUrl"] = *entry.PhotoURL
	body, ct := entryForm(t, fields, nil)
	resp := srv.do(t, "u1", http.MethodPut, path, body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[updateResponse](t, resp)
	assert.Equal(t, "Smallmouth Bass", updated.Entry.Species)
	assert.Equal(t, *entry.PhotoURL, *updated.Entry.PhotoURL)
	assert.Equal(t, 21.5, *updated.Entry.Weather.Temperature)
	assert.Equal(t, http.StatusOK, srv.fetchPhoto(t, *entry.PhotoURL).StatusCode)

	// Omitting it removes the photo and its blob.
	delete(fields, "photoUrl")
	body, ct = entryForm(t, fields, nil)
	resp = srv.do(t, "u1", http.MethodPut, path, body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated = decode[updateResponse](t, resp)
	assert.Nil(t, updated.Entry.PhotoURL)
	assert.Empty(t, updated.PhotoWarning)
	assert.Equal(t, http.StatusNotFound, srv.fetchPhoto(t, *entry.PhotoURL).StatusCode)

	resp = srv.do(t, "u2", http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_MoveEntry(t *testing.T) {
	srv := newTestServer(t, "")
	pin := srv.createPin(t, "u1", 44.5, -79.25)
	entry := srv.createEntry(t, "u1", pin.ID, nil)

	resp := srv.doJSON(t, "u1", http.MethodPost, "/entries/"+strconv.FormatInt(entry.ID, 10)+"/move",
		map[string]any{"latitude": 46.0, "longitude": -80.0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var moved struct {
		Entry         entryJSON `json:"entry"`
		Pin           pinJSON   `json:"pin"`
		OldPinID      int64     `json:"oldPinId"`
		OldPinDeleted bool      `json:"oldPinDeleted"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&moved))
	assert.Equal(t, pin.ID, moved.OldPinID)
	assert.True(t, moved.OldPinDeleted)
	assert.Equal(t, moved.Pin.ID, moved.Entry.PinID)
	assert.Equal(t, 46.0, moved.Pin.Latitude)

	pins := decode[[]pinJSON](t, srv.do(t, "u1", http.MethodGet, "/pins", nil, ""))
	require.Len(t, pins, 1)
	assert.Equal(t, moved.Pin.ID, pins[0].ID)
}

func TestIntegration_ListEntriesAndStats(t *testing.T) {
	srv := newTestServer(t, "")
	a := srv.createPin(t, "u1", 44.5, -79.25)
	b := srv.createPin(t, "u1", 45.5, -78.25)
	srv.createEntry(t, "u1", a.ID, nil)
	srv.createEntry(t, "u1", b.ID, nil)

	entries := decode[[]entryJSON](t, srv.do(t, "u1", http.MethodGet, "/entries?pin="+strconv.FormatInt(b.ID, 10), nil, ""))
	require.Len(t, entries, 1)
	assert.Equal(t, b.ID, entries[0].PinID)

	entries = decode[[]entryJSON](t, srv.do(t, "u1", http.MethodGet, "/entries?from=2024-07-01T00:00", nil, ""))
	assert.Empty(t, entries)

	resp := srv.do(t, "u1", http.MethodGet, "/entries?from=someday", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	stats := decode[map[string]any](t, srv.do(t, "u1", http.MethodGet, "/stats", nil, ""))
	assert.Equal(t, 2.0, stats["totalEntries"])
	assert.Equal(t, 2.0, stats["totalPins"])
	assert.Equal(t, 14.5, stats["maxLength"])
	assert.Len(t, stats["longest"], 2)
	assert.Len(t, stats["recent"], 2)
}

func TestIntegration_SignedPhotoURL(t *testing.T) {
	srv := newTestServer(t, "test-signing-key")
	pin := srv.createPin(t, "u1", 44.5, -79.25)
	entry := srv.createEntry(t, "u1", pin.ID, minimalJPEG)

	require.NotNil(t, entry.PhotoURL)
	assert.Contains(t, *entry.PhotoURL, "/storage/v1/object/sign/"+bucket+"/")
	assert.Equal(t, http.StatusOK, srv.fetchPhoto(t, *entry.PhotoURL).StatusCode)

	tampered := strings.Replace(*entry.PhotoURL, "token=", "token=x", 1)
	assert.Equal(t, http.StatusForbidden, srv.fetchPhoto(t, tampered).StatusCode)

	noToken := (*entry.PhotoURL)[:strings.Index(*entry.PhotoURL, "?")]
	assert.Equal(t, http.StatusForbidden, srv.fetchPhoto(t, noToken).StatusCode)

	// A private bucket has no unauthenticated route to the same object.
	public := strings.Replace(noToken, "/object/sign/", "/object/public/", 1)
	assert.Equal(t, http.StatusNotFound, srv.fetchPhoto(t, public).StatusCode)
}

func TestIntegration_UpdateRejectsOtherOwnersPhoto(t *testing.T) {
	srv := newTestServer(t, "")
	bobPin := srv.createPin(t, "bob", 44.5, -79.25)
	bobEntry := srv.createEntry(t, "bob", bobPin.ID, minimalJPEG)
	alicePin := srv.createPin(t, "alice", 44.5, -79.25)
	aliceEntry := srv.createEntry(t, "alice", alicePin.ID, nil)
	path := "/entries/" + strconv.FormatInt(aliceEntry.ID, 10)

	fields := catchFields(alicePin.ID)
	fields["photoUrl"] = *bobEntry.PhotoURL
	body, ct := entryForm(t, fields, nil)
	resp := srv.do(t, "alice", http.MethodPut, path, body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Alice's follow-up edit and delete leave Bob's photo alone.
	delete(fields, "photoUrl")
	body, ct = entryForm(t, fields, nil)
	resp = srv.do(t, "alice", http.MethodPut, path, body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = srv.do(t, "alice", http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusOK, srv.fetchPhoto(t, *bobEntry.PhotoURL).StatusCode)
}

func TestIntegration_RejectsNonFiniteSize(t *testing.T) {
	srv := newTestServer(t, "")
	pin := srv.createPin(t, "u1", 44.5, -79.25)

	fields := catchFields(pin.ID)
	fields["weight"] = "Inf"
	body, ct := entryForm(t, fields, nil)
	resp := srv.do(t, "u1", http.MethodPost, "/entries", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, "u1", http.MethodGet, "/stats", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIntegration_SessionTackle(t *testing.T) {
	srv := newTestServer(t, "")

	state := decode[map[string]any](t, srv.doJSON(t, "u1", http.MethodPut, "/session/tackle",
		map[string]any{"tackle": "Drop shot", "visible": false}))
	assert.Equal(t, "Drop shot", state["tackle"])
	assert.Equal(t, false, state["visible"])

	other := decode[map[string]any](t, srv.do(t, "u2", http.MethodGet, "/session/tackle", nil, ""))
	assert.Equal(t, "", other["tackle"])

	resp := srv.do(t, "u1", http.MethodDelete, "/session/tackle", nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	state = decode[map[string]any](t, srv.do(t, "u1", http.MethodGet, "/session/tackle", nil, ""))
	assert.Equal(t, "", state["tackle"])
	assert.Equal(t, true, state["visible"])
}

func TestIntegration_DeleteAccount(t *testing.T) {
	srv := newTestServer(t, "")
	pin := srv.createPin(t, "u1", 44.5, -79.25)
	entry := srv.createEntry(t, "u1", pin.ID, minimalJPEG)
	otherPin := srv.createPin(t, "u2", 44.5, -79.25)
	srv.createEntry(t, "u2", otherPin.ID, nil)

	resp := srv.do(t, "u1", http.MethodDelete, "/account", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]any](t, resp)
	assert.Equal(t, 1.0, out["entriesDeleted"])
	assert.Equal(t, 1.0, out["pinsDeleted"])
	assert.Equal(t, 1.0, out["photosRemoved"])

	assert.Equal(t, http.StatusNotFound, srv.fetchPhoto(t, *entry.PhotoURL).StatusCode)
	assert.Empty(t, decode[[]pinJSON](t, srv.do(t, "u1", http.MethodGet, "/pins", nil, "")))
	assert.Len(t, decode[[]pinJSON](t, srv.do(t, "u2", http.MethodGet, "/pins", nil, "")), 1)
}

func TestIntegration_Metrics(t *testing.T) {
	srv := newTestServer(t, "")
	srv.do(t, "u1", http.MethodGet, "/pins", nil, "")

	resp := srv.do(t, "", http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `catchlogs_http_requests_total{method="GET",pattern="GET /pins",status="200"}`)
}
