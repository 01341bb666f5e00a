// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package roomlink

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	HTTPDebug = os.Getenv("HTTP_DEBUG") == "true"

	tokenHTTPClient = http.Client{
		Timeout: 10 * time.Second,
	}
)

func init() {
	if HTTPDebug {
		tokenHTTPClient.Transport = &loggingTransport{}
	}
}

type loggingTransport struct{}

func (s *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	bytes, _ := httputil.DumpRequestOut(r, false)

	resp, err := http.DefaultTransport.RoundTrip(r)
	if err != nil {
		log.Debug().Msgf("HTTP Debug:\n%s\n", bytes)
		return resp, err
	}

	respBytes, _ := httputil.DumpResponse(resp, false)
	bytes = append(bytes, respBytes...)

	log.Debug().Msgf("HTTP Debug:\n%s\n", bytes)

	return resp, err
}

// TokenClient requests join tokens from a token endpoint, normally served by
// tokenserver package or any compatible service.
type TokenClient struct {
	// Endpoint is full URL of token service, ex http://localhost:8090/api/token
	Endpoint string

	// HTTPClient overrides default client. Mostly for testing.
	HTTPClient *http.Client
}

type tokenRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
	Name     string `json:"name,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Fetch posts identity and room to the endpoint and returns signed token.
func (c *TokenClient) Fetch(ctx context.Context, identity string, room string, name string) (string, error) {
	body, err := json.Marshal(tokenRequest{Identity: identity, Room: room, Name: name})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &tokenHTTPClient
	}

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}

	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("bad token response. code=%d: %w", res.StatusCode, err)
	}

	if res.StatusCode != http.StatusOK {
		if tr.Error != "" {
			return "", fmt.Errorf("token endpoint error. code=%d: %s", res.StatusCode, tr.Error)
		}
		return "", fmt.Errorf("token endpoint error. code=%d", res.StatusCode)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}
	return tr.Token, nil
}

// PlaceholderToken builds unsigned JWT carrying room join grant. Servers
// running with token verification disabled accept it, which keeps local
// development going without API keys. Any real deployment rejects it.
func PlaceholderToken(identity string, room string) string {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	claims := map[string]any{
		"iss": "devkey",
		"sub": identity,
		"nbf": time.Now().Unix(),
		"exp": time.Now().Add(6 * time.Hour).Unix(),
		"video": map[string]any{
			"room":     room,
			"roomJoin": true,
		},
	}

	hb, _ := json.Marshal(header)
	cb, _ := json.Marshal(claims)
	return base64.RawURLEncoding.EncodeToString(hb) + "." + base64.RawURLEncoding.EncodeToString(cb) + "."
}
