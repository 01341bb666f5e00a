// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package roomlink

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "alice", req.Identity)
		require.Equal(t, "demo", req.Room)
		require.Equal(t, "Alice", req.Name)

		json.NewEncoder(w).Encode(tokenResponse{Token: "signed-jwt"})
	}))
	defer srv.Close()

	c := TokenClient{Endpoint: srv.URL}
	token, err := c.Fetch(context.TODO(), "alice", "demo", "Alice")
	require.NoError(t, err)
	require.Equal(t, "signed-jwt", token)
}

func TestTokenClientFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(tokenResponse{Error: "identity is required"})
	}))
	defer srv.Close()

	c := TokenClient{Endpoint: srv.URL}
	_, err := c.Fetch(context.TODO(), "", "demo", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "identity is required")
}

func TestTokenClientFetchEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenResponse{})
	}))
	defer srv.Close()

	c := TokenClient{Endpoint: srv.URL}
	_, err := c.Fetch(context.TODO(), "alice", "demo", "")
	require.Error(t, err)
}

func TestPlaceholderToken(t *testing.T) {
	token := PlaceholderToken("alice", "demo")

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	require.Empty(t, parts[2], "placeholder token must be unsigned")

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var claims struct {
		Sub   string `json:"sub"`
		Video struct {
			Room     string `json:"room"`
			RoomJoin bool   `json:"roomJoin"`
		} `json:"video"`
	}
	require.NoError(t, json.Unmarshal(payload, &claims))
	require.Equal(t, "alice", claims.Sub)
	require.Equal(t, "demo", claims.Video.Room)
	require.True(t, claims.Video.RoomJoin)
}

func TestLoggingTransportError(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1/api/token", nil)
	require.NoError(t, err)

	// transport error path must not touch the nil response
	tr := &loggingTransport{}
	resp, err := tr.RoundTrip(req)
	require.Error(t, err)
	require.Nil(t, resp)
}

func TestResolveTokenFallback(t *testing.T) {
	// Explicit token wins
	s := NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice", Token: "explicit"})
	token, err := s.resolveToken(context.TODO())
	require.NoError(t, err)
	require.Equal(t, "explicit", token)

	// Endpoint provides the token
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenResponse{Token: "endpoint-jwt"})
	}))
	defer srv.Close()

	s = NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice", TokenEndpoint: srv.URL})
	token, err = s.resolveToken(context.TODO())
	require.NoError(t, err)
	require.Equal(t, "endpoint-jwt", token)

	// Unreachable endpoint falls back to placeholder
	s = NewSession(Config{URL: "ws://localhost:7880", Room: "demo", Identity: "alice", TokenEndpoint: "http://127.0.0.1:1/api/token"})
	token, err = s.resolveToken(context.TODO())
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(token, "."), "placeholder token is unsigned")
}
