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
	"fmt"
	"net/http"
	"strings"

	"exchange-settlement-go/internal/store"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const sessionKey contextKey = "session"

// Session is the authenticated identity extracted from a bearer token.
type Session struct {
	UserId   string
	Email    string
	Username string
}

// Claims is the JWT payload the storefront issues at sign-in.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates bearer tokens and resolves admin rights against
// the profile store.
type Authenticator struct {
	secret []byte
	store  store.ExchangeStore
}

func NewAuthenticator(secret string, st store.ExchangeStore) *Authenticator {
	return &Authenticator{secret: []byte(secret), store: st}
}

// SessionFrom returns the session attached to the request context, if any.
func SessionFrom(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionKey).(*Session)
	return session, ok
}

func (a *Authenticator) parseToken(r *http.Request) (*Session, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, errors.New("authorization header is not a bearer token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}

	return &Session{
		UserId:   claims.Subject,
		Email:    claims.Email,
		Username: claims.Username,
	}, nil
}

// WithSession attaches the session to the context when a valid token is
// presented. Requests without a token pass through anonymously; requests
// with a bad token are rejected.
func (a *Authenticator) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := a.parseToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if session != nil {
			r = r.WithContext(context.WithValue(r.Context(), sessionKey, session))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects anonymous requests.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFrom(r.Context()); !ok {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose user does not hold the admin role.
// The role is read from the profile store, not the token, so a revoked
// administrator is locked out as soon as their profile changes.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFrom(r.Context())
		if !ok {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		isAdmin, err := a.store.IsAdmin(r.Context(), session.UserId)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to verify role")
			return
		}
		if !isAdmin {
			respondError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
