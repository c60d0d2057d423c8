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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeStatus is the lifecycle state of an exchange request.
type ExchangeStatus string

const (
	StatusPending    ExchangeStatus = "pending"
	StatusConfirming ExchangeStatus = "confirming"
	StatusExchanging ExchangeStatus = "exchanging"
	StatusSending    ExchangeStatus = "sending"
	StatusCompleted  ExchangeStatus = "completed"
	StatusCancelled  ExchangeStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s ExchangeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is one of the defined lifecycle states.
func (s ExchangeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirming, StatusExchanging, StatusSending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// allowedTransitions encodes the lifecycle: forward through the settlement
// sequence, cancellation only before funds are being moved, and the
// administrator shortcut straight to completed.
var allowedTransitions = map[ExchangeStatus][]ExchangeStatus{
	StatusPending:    {StatusConfirming, StatusCompleted, StatusCancelled},
	StatusConfirming: {StatusExchanging, StatusCompleted, StatusCancelled},
	StatusExchanging: {StatusSending},
	StatusSending:    {StatusCompleted},
}

// CanTransitionTo reports whether the edge s -> next is part of the lifecycle.
func (s ExchangeStatus) CanTransitionTo(next ExchangeStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Exchange represents one user-initiated currency conversion order.
// UserId is empty for anonymous exchanges.
type Exchange struct {
	Id                     string          `db:"id"`
	ExchangeCode           string          `db:"exchange_code"`
	UserId                 string          `db:"user_id"`
	FromCurrency           string          `db:"from_currency"`
	ToCurrency             string          `db:"to_currency"`
	SendAmount             decimal.Decimal `db:"send_amount"`
	ReceiveAmount          decimal.Decimal `db:"receive_amount"`
	FeeAmount              decimal.Decimal `db:"fee_amount"`
	FeeDetails             string          `db:"fee_details"`
	UsdValue               decimal.Decimal `db:"usd_value"`
	Status                 ExchangeStatus  `db:"status"`
	RecipientWalletAddress string          `db:"recipient_wallet_address"`
	PaymentMethodId        string          `db:"payment_method_id"`
	CreatedAt              time.Time       `db:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at"`
}

// PaymentMethod is the receiving account an administrator configures for a
// currency. Details holds the literal address used for deposit matching.
type PaymentMethod struct {
	Id         string    `db:"id"`
	Method     string    `db:"method"`
	DetailType string    `db:"detail_type"`
	Details    string    `db:"details"`
	QrCodeUrl  string    `db:"qr_code_url"`
	CreatedAt  time.Time `db:"created_at"`
}

// Currency is one configured currency symbol (crypto or fiat).
type Currency struct {
	Id        string    `db:"id"`
	Symbol    string    `db:"symbol"`
	Name      string    `db:"name"`
	Type      string    `db:"type"` // "crypto" or "fiat"
	IconUrl   string    `db:"icon_url"`
	CreatedAt time.Time `db:"created_at"`
}

// ExchangePair is a tradable (from, to) pair with its fee policy and the
// payment method deposits for this pair arrive on.
type ExchangePair struct {
	Id              string    `db:"id"`
	FromCurrency    string    `db:"from_currency"`
	ToCurrency      string    `db:"to_currency"`
	Fee             float64   `db:"fee"`
	FeeType         string    `db:"fee_type"` // "percentage" or "fixed"
	PaymentMethodId string    `db:"payment_method_id"`
	CreatedAt       time.Time `db:"created_at"`
}

// Profile is the user-facing identity attached to an exchange.
type Profile struct {
	Id        string    `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	AvatarUrl string    `db:"avatar_url"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

// ExchangeDetails bundles an exchange with the payment method the user is
// expected to pay into. Served to tracking views.
type ExchangeDetails struct {
	Exchange      Exchange       `json:"exchange"`
	PaymentMethod *PaymentMethod `json:"payment_method,omitempty"`
}

// AdminExchange is an exchange joined with its owner's profile, as listed in
// the back office.
type AdminExchange struct {
	Exchange
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarUrl string `json:"avatar_url,omitempty"`
}

// DashboardStats is the aggregate view behind the admin dashboard.
type DashboardStats struct {
	TotalExchanges     int             `json:"total_exchanges"`
	PendingExchanges   int             `json:"pending_exchanges"`
	CompletedExchanges int             `json:"completed_exchanges"`
	CancelledExchanges int             `json:"cancelled_exchanges"`
	CompletedVolumeUsd decimal.Decimal `json:"completed_volume_usd"`
	UniqueUsers        int             `json:"unique_users"`
}

// TopUser is one row of the volume leaderboard.
type TopUser struct {
	UserId      string          `json:"user_id"`
	Username    string          `json:"username"`
	AvatarUrl   string          `json:"avatar_url"`
	TotalVolume decimal.Decimal `json:"total_volume"`
}

// UserDetails is a profile joined with exchange activity counts.
type UserDetails struct {
	Profile
	ExchangeCount int `json:"exchange_count"`
}
