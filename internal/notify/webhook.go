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

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"exchange-settlement-go/internal/models"

	"go.uber.org/zap"
)

// Embed colors per event kind.
const (
	colorBlue   = 3447003
	colorYellow = 16776960
	colorGreen  = 3066993
	colorRed    = 15548997
)

// Field is one name/value pair inside an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Footer is the embed footer line.
type Footer struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

// Thumbnail is the embed thumbnail image.
type Thumbnail struct {
	URL string `json:"url"`
}

// Embed is one rich message block in the webhook payload.
type Embed struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Color       int        `json:"color"`
	Fields      []Field    `json:"fields"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
	Footer      *Footer    `json:"footer,omitempty"`
	Timestamp   string     `json:"timestamp,omitempty"`
}

// Payload is the webhook wire format.
type Payload struct {
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

// Service delivers exchange lifecycle notifications to the configured
// webhook endpoint. Delivery is strictly best-effort: nothing in the
// settlement flow depends on it succeeding.
type Service struct {
	client     *http.Client
	webhookURL string
	retryDelay time.Duration
	botName    string
	avatarURL  string

	warnOnce sync.Once
}

func New(cfg models.NotifyConfig) *Service {
	return &Service{
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		webhookURL: cfg.WebhookURL,
		retryDelay: cfg.RetryDelay,
		botName:    cfg.BotName,
		avatarURL:  cfg.AvatarURL,
	}
}

// Configured reports whether a webhook endpoint is set.
func (s *Service) Configured() bool {
	return s.webhookURL != ""
}

// send posts the payload, retrying exactly once after retryDelay on any
// failure. Errors never propagate to the caller.
func (s *Service) send(ctx context.Context, payload Payload) {
	if !s.Configured() {
		s.warnOnce.Do(func() {
			zap.L().Warn("Webhook URL not configured, notifications disabled")
		})
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("Failed to marshal webhook payload", zap.Error(err))
		return
	}

	if s.post(ctx, body) {
		return
	}

	select {
	case <-time.After(s.retryDelay):
	case <-ctx.Done():
		return
	}

	if !s.post(ctx, body) {
		zap.L().Warn("Webhook delivery failed after retry, giving up")
	}
}

func (s *Service) post(ctx context.Context, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		zap.L().Warn("Failed to build webhook request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		zap.L().Warn("Webhook request failed", zap.Error(err))
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Warn("Webhook returned non-2xx status", zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}

func (s *Service) newPayload(embed Embed) Payload {
	return Payload{
		Username:  s.botName,
		AvatarURL: s.avatarURL,
		Embeds:    []Embed{embed},
	}
}

// truncateWalletAddress shortens an address for display: 6 leading and 4
// trailing characters.
func truncateWalletAddress(address string) string {
	if address == "" {
		return "Not Provided"
	}
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
