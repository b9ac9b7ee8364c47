package wsd

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleMetadataPostWrongPath404(t *testing.T) {
	h := newTestHost()
	h.On(ActionGet, h.handleGet)

	mux := NewHTTPServer("127.0.0.1:0", "11111111-2222-3333-4444-555555555555", h, nopSink{})
	_ = mux

	req := httptest.NewRequest("POST", "/not-the-uuid", strings.NewReader("x"))
	w := httptest.NewRecorder()
	mux.srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, 404, w.Code)
}

func TestHandleMetadataPostMissingContentType400(t *testing.T) {
	h := newTestHost()
	h.On(ActionGet, h.handleGet)

	mux := NewHTTPServer("127.0.0.1:0", "11111111-2222-3333-4444-555555555555", h, nopSink{})

	req := httptest.NewRequest("POST", "/11111111-2222-3333-4444-555555555555", strings.NewReader("x"))
	w := httptest.NewRecorder()
	mux.srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestHandleMetadataPostGetReturnsMetadata(t *testing.T) {
	h := newTestHost()
	h.On(ActionGet, h.handleGet)

	mux := NewHTTPServer("127.0.0.1:0", "11111111-2222-3333-4444-555555555555", h, nopSink{})

	payload, err := Build(BuildOptions{
		To:        h.ownURN,
		Action:    ActionGet,
		MessageID: "urn:uuid:ffff",
	}, Get{})
	if err != nil {
		t.Fatalf("build Get: %v", err)
	}

	req := httptest.NewRequest("POST", "/11111111-2222-3333-4444-555555555555", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/soap+xml")
	w := httptest.NewRecorder()
	mux.srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "GetResponse")
}
