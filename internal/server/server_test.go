package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/model"
	"github.com/23skdu/longbow-bodkin/internal/translator"
	"github.com/23skdu/longbow-bodkin/internal/vocab"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	src := vocab.New(map[string]int{"a": 2, "b": 3})
	trg := vocab.New(map[string]int{"x": 2, "y": 3})
	table := map[int]map[int]float32{
		vocab.EOS: {2: -0.1, 3: -1.0},
		2:         {3: -0.1, vocab.EOS: -5},
		3:         {vocab.EOS: -0.1},
	}

	cfg := config.Default()
	cfg.BeamSize = 3
	cfg.MaxLen = 10

	tr, err := translator.New(cfg, []model.Scorer{model.NewNgram(4, -20, table)}, src, trg)
	require.NoError(t, err)
	return New(tr)
}

func TestHandleTranslate(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(translateRequest{Text: "a b"})
	req := httptest.NewRequest(http.MethodPost, "/translate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp translateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "a b", resp.Source)
	assert.Equal(t, "x y", resp.Target)
	assert.Greater(t, resp.Score, float32(0))
}

func TestHandleTranslate_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "{", http.StatusBadRequest},
		{"missing text", http.MethodPost, `{"text": ""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/translate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status healthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, Version, status.Version)
	assert.NotEmpty(t, status.Uptime)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWebSocketStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// several requests over one connection
	for _, text := range []string{"a", "a b"} {
		require.NoError(t, conn.WriteJSON(wsRequest{Text: text}))

		var resp wsResponse
		require.NoError(t, conn.ReadJSON(&resp))
		assert.Equal(t, text, resp.Source)
		assert.NotEmpty(t, resp.Target)
		assert.Empty(t, resp.Error)
		assert.True(t, resp.Complete)
	}

	// malformed payloads get an error frame, not a closed connection
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	var resp wsResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "invalid request", resp.Error)

	require.NoError(t, conn.WriteJSON(wsRequest{}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "missing text", resp.Error)
}
