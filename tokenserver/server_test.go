// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package tokenserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"testing"

	"github.com/livekit/protocol/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *Server {
	conf := &Config{
		HTTP:    HTTPConfig{Address: "127.0.0.1", Port: 8000},
		LiveKit: LiveKitConfig{URL: "wss://livekit.example.com", APIKey: "devkey", APISecret: "secret-with-enough-length-0000"},
	}
	require.NoError(t, conf.Validate())
	return NewServer(conf, slog.Default())
}

func TestTokenPost(t *testing.T) {
	s := testServer(t)

	body, _ := json.Marshal(TokenRequest{Identity: "alice", Room: "demo"})
	req := httptest.NewRequest(http.MethodPost, "/api/token", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.Identity)
	assert.Equal(t, "demo", resp.Room)
	// name falls back to identity
	assert.Equal(t, "alice", resp.Name)
	assert.Equal(t, "wss://livekit.example.com", resp.URL)

	// issued token must verify against the same credentials
	v, err := auth.ParseAPIToken(resp.Token)
	require.NoError(t, err)
	grants, err := v.Verify("secret-with-enough-length-0000")
	require.NoError(t, err)
	assert.Equal(t, "alice", grants.Identity)
	require.NotNil(t, grants.Video)
	assert.True(t, grants.Video.RoomJoin)
	assert.Equal(t, "demo", grants.Video.Room)
}

func TestTokenGet(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/token?identity=bob&room=demo&name=Bobby", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bobby", resp.Name)
}

func TestTokenMissingParams(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/token?identity=bob", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "identity and room")
}

func TestTokenBadBody(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/token", bytes.NewReader([]byte("{broken")))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenMethodNotAllowed(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/token", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/token", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestConfigLoad(t *testing.T) {
	dir := t.TempDir()
	file := path.Join(dir, "config.yaml")
	content := []byte(`
http:
  address: "0.0.0.0"
  port: 8000
livekit:
  url: "wss://livekit.example.com"
  api_key: "devkey"
  api_secret: "secret"
token:
  ttl: 3600
`)
	require.NoError(t, os.WriteFile(file, content, 0644))

	conf, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 8000, conf.HTTP.Port)
	assert.Equal(t, "devkey", conf.LiveKit.APIKey)
	assert.Equal(t, "1h0m0s", conf.TokenTTL().String())
}

func TestConfigValidate(t *testing.T) {
	conf := &Config{HTTP: HTTPConfig{Port: 8000}}
	err := conf.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")

	conf.LiveKit.APIKey = "k"
	err = conf.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_secret")

	conf.LiveKit.APISecret = "s"
	require.NoError(t, conf.Validate())

	conf.HTTP.Port = 0
	require.Error(t, conf.Validate())
}
