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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"exchange-settlement-go/internal/exchange"
	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Debug("Failed to write response body", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateExchange accepts a new order. Anonymous orders are allowed;
// when a session is present it owns the order regardless of what the body
// claims.
func (s *Server) handleCreateExchange(w http.ResponseWriter, r *http.Request) {
	var req exchange.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if session, ok := SessionFrom(r.Context()); ok {
		req.UserId = session.UserId
	} else {
		req.UserId = ""
	}

	created, err := s.exchanges.CreateExchange(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPairNotFound):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, exchange.ErrRateUnavailable):
			respondError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, exchange.ErrAmountTooSmall):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			zap.L().Error("Failed to create exchange", zap.Error(err))
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// handleTracking serves the tracking view by id, falling back to the short
// exchange code the confirmation page shows.
func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	details, err := s.exchanges.Tracking(r.Context(), ref)
	if errors.Is(err, store.ErrExchangeNotFound) {
		details, err = s.exchanges.TrackingByCode(r.Context(), strings.ToUpper(ref))
	}
	if err != nil {
		if errors.Is(err, store.ErrExchangeNotFound) {
			respondError(w, http.StatusNotFound, "exchange not found")
			return
		}
		zap.L().Error("Failed to load exchange details", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load exchange")
		return
	}

	respondJSON(w, http.StatusOK, details)
}

func (s *Server) handleUserExchanges(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	exchanges, err := s.exchanges.UserExchanges(r.Context(), session.UserId)
	if err != nil {
		zap.L().Error("Failed to list user exchanges", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}
	respondJSON(w, http.StatusOK, exchanges)
}

// handleRate quotes the current conversion rate for a pair.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	from := strings.ToUpper(r.URL.Query().Get("from"))
	to := strings.ToUpper(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		respondError(w, http.StatusBadRequest, "from and to query parameters are required")
		return
	}

	rate, ok := s.rates.ConversionRate(from, to)
	if !ok {
		respondError(w, http.StatusNotFound, "rate unavailable for pair")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"from":         from,
		"to":           to,
		"rate":         rate,
		"last_updated": s.rates.LastUpdated().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.store.ListCurrencies(r.Context())
	if err != nil {
		zap.L().Error("Failed to list currencies", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list currencies")
		return
	}
	respondJSON(w, http.StatusOK, currencies)
}

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.store.ListExchangePairs(r.Context())
	if err != nil {
		zap.L().Error("Failed to list exchange pairs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list pairs")
		return
	}
	respondJSON(w, http.StatusOK, pairs)
}

// --- Admin handlers ---

func (s *Server) handleAdminExchanges(w http.ResponseWriter, r *http.Request) {
	exchanges, err := s.store.GetAdminExchanges(r.Context())
	if err != nil {
		zap.L().Error("Failed to list admin exchanges", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}
	respondJSON(w, http.StatusOK, exchanges)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetDashboardStats(r.Context())
	if err != nil {
		zap.L().Error("Failed to load dashboard stats", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminTopUsers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	users, err := s.store.GetTopUsersByVolume(r.Context(), limit)
	if err != nil {
		zap.L().Error("Failed to load top users", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load top users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.GetUsersWithDetails(r.Context())
	if err != nil {
		zap.L().Error("Failed to list users", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

type statusUpdateRequest struct {
	Status models.ExchangeStatus `json:"status"`
}

func (s *Server) handleAdminSetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, _ := SessionFrom(r.Context())
	updated, err := s.exchanges.AdminSetStatus(r.Context(), id, req.Status, session.Username)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrExchangeNotFound):
			respondError(w, http.StatusNotFound, "exchange not found")
		case errors.Is(err, store.ErrInvalidTransition):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrStatusConflict):
			respondError(w, http.StatusConflict, "exchange changed, reload and retry")
		default:
			zap.L().Error("Failed to update exchange status", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to update status")
		}
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.exchanges.AdminDelete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrExchangeNotFound) {
			respondError(w, http.StatusNotFound, "exchange not found")
			return
		}
		zap.L().Error("Failed to delete exchange", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete exchange")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
