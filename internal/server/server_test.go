package server_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/example/go-khmer-tts/internal/g2p"
	"github.com/example/go-khmer-tts/internal/server"
	"github.com/example/go-khmer-tts/internal/symbols"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// stubPhonemizer treats its input as space-separated phones.
type stubPhonemizer struct {
	err   error
	calls atomic.Int32
}

func (s *stubPhonemizer) Phonemize(text string) (g2p.Result, error) {
	s.calls.Add(1)

	if s.err != nil {
		return g2p.Result{}, s.err
	}

	var words []g2p.Word
	for _, f := range strings.Fields(text) {
		words = append(words, g2p.Word{Text: f, Phones: []string{f}})
	}

	return g2p.Result{Text: text, Words: words}, nil
}

// blockingPhonemizer blocks until release is closed.
type blockingPhonemizer struct {
	release chan struct{}
	onEnter func()
	onExit  func()
}

func (b *blockingPhonemizer) Phonemize(text string) (g2p.Result, error) {
	if b.onEnter != nil {
		b.onEnter()
	}

	<-b.release

	if b.onExit != nil {
		b.onExit()
	}

	return g2p.Result{Text: text, Words: []g2p.Word{{Text: text, Phones: []string{"k"}}}}, nil
}

func khmerOnly() *symbols.Table { return symbols.MustBuild(symbols.PresetKhmerOnly) }

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	return v
}

// ---------------------------------------------------------------------------
// GET /health and /symbols
// ---------------------------------------------------------------------------

func TestHealth_ReportsTable(t *testing.T) {
	h := server.NewHandler(&stubPhonemizer{}, khmerOnly())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}

	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v; want ok", body["status"])
	}

	if body["preset"] != "khmer-only" {
		t.Errorf("preset = %v; want khmer-only", body["preset"])
	}

	if body["size"] != float64(168) {
		t.Errorf("size = %v; want 168", body["size"])
	}

	if body["version"] == "" {
		t.Error("version must not be empty")
	}
}

func TestSymbols_ReturnsManifest(t *testing.T) {
	table := khmerOnly()
	h := server.NewHandler(&stubPhonemizer{}, table)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/symbols", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	m := decodeBody[symbols.Manifest](t, rec)
	if err := m.Verify(table); err != nil {
		t.Fatalf("served manifest does not verify: %v", err)
	}
}

// ---------------------------------------------------------------------------
// POST /phonemize
// ---------------------------------------------------------------------------

func TestPhonemize_ReturnsPhonesAndIDs(t *testing.T) {
	table := khmerOnly()
	h := server.NewHandler(&stubPhonemizer{}, table)

	rec := post(t, h, "/phonemize", `{"text":"k ɔ Z m"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body)
	}

	var body struct {
		Text    string     `json:"text"`
		Words   []g2p.Word `json:"words"`
		Phones  []string   `json:"phones"`
		IDs     []int      `json:"ids"`
		Missing []string   `json:"missing"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(body.Words) != 4 || len(body.Phones) != 4 || len(body.IDs) != 4 {
		t.Fatalf("body = %+v", body)
	}

	if len(body.Missing) != 1 || body.Missing[0] != "Z" {
		t.Errorf("missing = %v; want [Z]", body.Missing)
	}

	if body.IDs[2] != table.PadID() {
		t.Errorf("ids[2] = %d; want pad id %d for the unknown token", body.IDs[2], table.PadID())
	}

	kID, _ := table.ID("k")
	if body.IDs[0] != kID {
		t.Errorf("ids[0] = %d; want %d", body.IDs[0], kID)
	}
}

func TestPhonemize_EmptyMissingIsArray(t *testing.T) {
	h := server.NewHandler(&stubPhonemizer{}, khmerOnly())

	rec := post(t, h, "/phonemize", `{"text":"k"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), `"missing":[]`) {
		t.Errorf("missing should serialize as []: %s", rec.Body)
	}
}

func TestPhonemize_BadRequests(t *testing.T) {
	cases := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{", http.StatusBadRequest},
		{"empty text", http.MethodPost, `{"text":""}`, http.StatusBadRequest},
		{"blank text", http.MethodPost, `{"text":"   "}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubPhonemizer{}
			h := server.NewHandler(stub, khmerOnly())

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, "/phonemize", bytes.NewBufferString(tc.body))
			h.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("want %d, got %d", tc.want, rec.Code)
			}

			body := decodeBody[map[string]string](t, rec)
			if body["error"] == "" {
				t.Error("want non-empty error field")
			}

			if stub.calls.Load() != 0 {
				t.Error("phonemizer must not run for rejected requests")
			}
		})
	}
}

func TestPhonemize_ErrorReturns500(t *testing.T) {
	h := server.NewHandler(&stubPhonemizer{err: errors.New("boom")}, khmerOnly())

	rec := post(t, h, "/phonemize", `{"text":"k"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /encode and /decode
// ---------------------------------------------------------------------------

func TestEncode_RoundTripsThroughDecode(t *testing.T) {
	h := server.NewHandler(&stubPhonemizer{}, khmerOnly())

	rec := post(t, h, "/encode", `{"tokens":["k","ɔ","m","."]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("encode: want 200, got %d: %s", rec.Code, rec.Body)
	}

	enc := decodeBody[struct {
		IDs []int `json:"ids"`
	}](t, rec)

	ids, _ := json.Marshal(map[string][]int{"ids": enc.IDs})

	rec = post(t, h, "/decode", string(ids))
	if rec.Code != http.StatusOK {
		t.Fatalf("decode: want 200, got %d: %s", rec.Code, rec.Body)
	}

	dec := decodeBody[struct {
		Tokens []string `json:"tokens"`
	}](t, rec)

	if strings.Join(dec.Tokens, " ") != "k ɔ m ." {
		t.Errorf("tokens = %v; want [k ɔ m .]", dec.Tokens)
	}
}

func TestEncode_UnknownSymbolReturns422(t *testing.T) {
	h := server.NewHandler(&stubPhonemizer{}, khmerOnly())

	rec := post(t, h, "/encode", `{"tokens":["k","Z","m"]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", rec.Code)
	}

	body := decodeBody[map[string]any](t, rec)
	if body["token"] != "Z" {
		t.Errorf("token = %v; want Z", body["token"])
	}

	if body["position"] != float64(1) {
		t.Errorf("position = %v; want 1", body["position"])
	}

	if body["error"] == "" {
		t.Error("want non-empty error field")
	}
}

func TestEncode_EmptyTokens(t *testing.T) {
	h := server.NewHandler(&stubPhonemizer{}, khmerOnly())

	rec := post(t, h, "/encode", `{"tokens":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), `"ids":[]`) {
		t.Errorf("ids should serialize as []: %s", rec.Body)
	}
}

func TestDecode_OutOfRangeReturns422(t *testing.T) {
	h := server.NewHandler(&stubPhonemizer{}, khmerOnly())

	for _, body := range []string{`{"ids":[1,168]}`, `{"ids":[-1]}`} {
		rec := post(t, h, "/decode", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: want 422, got %d", body, rec.Code)
		}
	}
}

func TestEncodeDecode_MethodNotAllowed(t *testing.T) {
	h := server.NewHandler(&stubPhonemizer{}, khmerOnly())

	for _, path := range []string{"/encode", "/decode"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: want 405, got %d", path, rec.Code)
		}
	}
}
