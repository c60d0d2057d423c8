/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"exchange-settlement-go/internal/exchange"
	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/rates"
	"exchange-settlement-go/internal/realtime"
	"exchange-settlement-go/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Config wires the server's dependencies.
type Config struct {
	Server    models.ServerConfig
	Store     store.ExchangeStore
	Exchanges *exchange.Service
	Rates     *rates.Cache
	Hub       *realtime.Hub
}

// Server is the public HTTP surface: the storefront API, the admin API and
// the realtime stream.
type Server struct {
	httpServer *http.Server
	exchanges  *exchange.Service
	store      store.ExchangeStore
	rates      *rates.Cache
	hub        *realtime.Hub
	auth       *Authenticator
	shutdown   time.Duration
}

func NewServer(cfg Config) *Server {
	s := &Server{
		exchanges: cfg.Exchanges,
		store:     cfg.Store,
		rates:     cfg.Rates,
		hub:       cfg.Hub,
		auth:      NewAuthenticator(cfg.Server.JWTSecret, cfg.Store),
		shutdown:  cfg.Server.ShutdownTimeout,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.WithSession)

		r.Post("/exchanges", s.handleCreateExchange)
		r.Get("/exchanges/{id}", s.handleTracking)
		r.Get("/rates", s.handleRate)
		r.Get("/currencies", s.handleListCurrencies)
		r.Get("/pairs", s.handleListPairs)
		r.Get("/ws/exchanges", s.handleExchangeStream)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAuth)
			r.Get("/exchanges", s.handleUserExchanges)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Get("/exchanges", s.handleAdminExchanges)
			r.Get("/stats", s.handleAdminStats)
			r.Get("/top-users", s.handleAdminTopUsers)
			r.Get("/users", s.handleAdminUsers)
			r.Patch("/exchanges/{id}/status", s.handleAdminSetStatus)
			r.Delete("/exchanges/{id}", s.handleAdminDelete)
		})
	})

	return r
}

// Run blocks serving requests until Shutdown is called.
func (s *Server) Run() error {
	zap.L().Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// requestLogger records one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}
