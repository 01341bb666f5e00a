// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

// Package tokenserver implements the join token HTTP service. It mints
// signed LiveKit access tokens for a requested identity and room, over the
// same /api/token contract the browser demo uses.
package tokenserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TokenRequest is the POST body of /api/token. GET form uses same fields as
// query parameters.
type TokenRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
	Name     string `json:"name"`
}

type TokenResponse struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
	Room     string `json:"room"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	conf    *Config
	log     *slog.Logger
	metrics *Metrics

	srv *http.Server
}

func NewServer(conf *Config, log *slog.Logger) *Server {
	s := &Server{
		conf:    conf,
		log:     log.With("component", "tokenserver"),
		metrics: NewMetrics(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", s.handleToken)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", conf.HTTP.Address, conf.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks until server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("Token server listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK

	defer func() {
		s.metrics.Requests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		s.metrics.RequestDuration.Observe(time.Since(start).Seconds())
	}()

	// Browser demo is served from another origin
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	var req TokenRequest
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet:
		q := r.URL.Query()
		req = TokenRequest{
			Identity: q.Get("identity"),
			Room:     q.Get("room"),
			Name:     q.Get("name"),
		}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			status = http.StatusBadRequest
			s.writeError(w, status, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	default:
		status = http.StatusMethodNotAllowed
		s.writeError(w, status, "method not allowed")
		return
	}

	if req.Identity == "" || req.Room == "" {
		status = http.StatusBadRequest
		s.writeError(w, status, "missing required parameters: identity and room")
		return
	}
	if req.Name == "" {
		req.Name = req.Identity
	}

	token, err := s.mintToken(req)
	if err != nil {
		status = http.StatusInternalServerError
		s.log.Error("Token generation failed", "error", err, "identity", req.Identity, "room", req.Room)
		s.writeError(w, status, fmt.Sprintf("token generation failed: %v", err))
		return
	}

	s.metrics.TokensIssued.Inc()
	s.log.Info("Token issued", "identity", req.Identity, "room", req.Room)

	s.writeJSON(w, http.StatusOK, TokenResponse{
		Token:    token,
		Identity: req.Identity,
		Room:     req.Room,
		Name:     req.Name,
		URL:      s.conf.LiveKit.URL,
	})
}

func (s *Server) mintToken(req TokenRequest) (string, error) {
	at := auth.NewAccessToken(s.conf.LiveKit.APIKey, s.conf.LiveKit.APISecret)

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     req.Room,
	}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)

	at.AddGrant(grant).
		SetIdentity(req.Identity).
		SetName(req.Name).
		SetValidFor(s.conf.TokenTTL())

	return at.ToJWT()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
