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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/store"

	"github.com/google/uuid"
)

func (s *Service) GetPaymentMethod(ctx context.Context, id string) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := s.db.QueryRowContext(ctx, queryGetPaymentMethod, id).Scan(
		&method.Id, &method.Method, &method.DetailType, &method.Details,
		&method.QrCodeUrl, &method.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment method %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment method: %w", err)
	}
	return &method, nil
}

// FindPaymentMethodByLabel resolves a payment method by its Method label.
// Used when seeding pairs that refer to methods by name.
func (s *Service) FindPaymentMethodByLabel(ctx context.Context, label string) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := s.db.QueryRowContext(ctx, queryFindPaymentMethodByLabel, label).Scan(
		&method.Id, &method.Method, &method.DetailType, &method.Details,
		&method.QrCodeUrl, &method.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment method %q not found", label)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment method: %w", err)
	}
	return &method, nil
}

func (s *Service) UpsertPaymentMethod(ctx context.Context, method, detailType, details, qrCodeUrl string) error {
	_, err := s.db.ExecContext(ctx, queryUpsertPaymentMethod,
		uuid.New().String(), method, detailType, details, qrCodeUrl)
	if err != nil {
		return fmt.Errorf("failed to upsert payment method %q: %w", method, err)
	}
	return nil
}

func (s *Service) ListCurrencies(ctx context.Context) ([]models.Currency, error) {
	rows, err := s.db.QueryContext(ctx, queryListCurrencies)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	defer closeRows(rows)

	var currencies []models.Currency
	for rows.Next() {
		var currency models.Currency
		if err := rows.Scan(&currency.Id, &currency.Symbol, &currency.Name,
			&currency.Type, &currency.IconUrl, &currency.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		currencies = append(currencies, currency)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating currency rows: %w", err)
	}
	return currencies, nil
}

func (s *Service) UpsertCurrency(ctx context.Context, symbol, name, currencyType, iconUrl string) error {
	_, err := s.db.ExecContext(ctx, queryUpsertCurrency,
		uuid.New().String(), symbol, name, currencyType, iconUrl)
	if err != nil {
		return fmt.Errorf("failed to upsert currency %s: %w", symbol, err)
	}
	return nil
}

func (s *Service) GetExchangePair(ctx context.Context, from, to string) (*models.ExchangePair, error) {
	var pair models.ExchangePair
	err := s.db.QueryRowContext(ctx, queryGetExchangePair, from, to).Scan(
		&pair.Id, &pair.FromCurrency, &pair.ToCurrency, &pair.Fee,
		&pair.FeeType, &pair.PaymentMethodId, &pair.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrPairNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange pair: %w", err)
	}
	return &pair, nil
}

func (s *Service) ListExchangePairs(ctx context.Context) ([]models.ExchangePair, error) {
	rows, err := s.db.QueryContext(ctx, queryListExchangePairs)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchange pairs: %w", err)
	}
	defer closeRows(rows)

	var pairs []models.ExchangePair
	for rows.Next() {
		var pair models.ExchangePair
		if err := rows.Scan(&pair.Id, &pair.FromCurrency, &pair.ToCurrency,
			&pair.Fee, &pair.FeeType, &pair.PaymentMethodId, &pair.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pair rows: %w", err)
	}
	return pairs, nil
}

func (s *Service) UpsertExchangePair(ctx context.Context, from, to string, fee float64, feeType, paymentMethodId string) error {
	_, err := s.db.ExecContext(ctx, queryUpsertExchangePair,
		uuid.New().String(), from, to, fee, feeType, nullable(paymentMethodId))
	if err != nil {
		return fmt.Errorf("failed to upsert pair %s/%s: %w", from, to, err)
	}
	return nil
}

func (s *Service) GetProfile(ctx context.Context, userId string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.QueryRowContext(ctx, queryGetProfile, userId).Scan(
		&profile.Id, &profile.Username, &profile.Email, &profile.AvatarUrl,
		&profile.Role, &profile.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (s *Service) UpsertProfile(ctx context.Context, params store.UpsertProfileParams) error {
	id := params.Id
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, queryUpsertProfile,
		id, params.Username, params.Email, params.AvatarUrl, params.Role)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", params.Username, err)
	}
	return nil
}
