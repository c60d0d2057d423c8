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
	"errors"
	"fmt"
	"strings"

	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// newExchangeCode derives the short human-facing code shown on tracking pages
// and in notifications from a fresh UUID.
func newExchangeCode(id string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "-", "")[:8])
}

func (s *Service) CreateExchange(ctx context.Context, params store.CreateExchangeParams) (*models.Exchange, error) {
	if params.FromCurrency == "" || params.ToCurrency == "" {
		return nil, fmt.Errorf("from and to currencies are required")
	}
	if params.SendAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("send amount must be positive, got %s", params.SendAmount.String())
	}

	id := uuid.New().String()
	code := newExchangeCode(id)

	_, err := s.db.ExecContext(ctx, queryInsertExchange,
		id, code, nullable(params.UserId), params.FromCurrency, params.ToCurrency,
		params.SendAmount.String(), params.ReceiveAmount.String(),
		params.FeeAmount.String(), params.FeeDetails, params.UsdValue.String(),
		string(models.StatusPending), nullable(params.RecipientWalletAddress),
		nullable(params.PaymentMethodId))
	if err != nil {
		return nil, fmt.Errorf("failed to insert exchange: %w", err)
	}

	exchange, err := s.GetExchange(ctx, id)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Exchange created",
		zap.String("exchange_id", id),
		zap.String("exchange_code", code),
		zap.String("pair", params.FromCurrency+"/"+params.ToCurrency),
		zap.String("send_amount", params.SendAmount.String()))

	return exchange, nil
}

func (s *Service) GetExchange(ctx context.Context, id string) (*models.Exchange, error) {
	return s.getExchangeRow(ctx, queryGetExchange, id)
}

func (s *Service) GetExchangeByCode(ctx context.Context, code string) (*models.Exchange, error) {
	return s.getExchangeRow(ctx, queryGetExchangeByCode, code)
}

func (s *Service) getExchangeRow(ctx context.Context, query, arg string) (*models.Exchange, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	exchange, err := scanExchange(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrExchangeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}
	return exchange, nil
}

func (s *Service) ListPendingExchanges(ctx context.Context) ([]models.Exchange, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingExchanges)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending exchanges: %w", err)
	}
	defer closeRows(rows)

	return collectExchanges(rows)
}

func (s *Service) GetUserExchanges(ctx context.Context, userId string) ([]models.Exchange, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUserExchanges, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get user exchanges: %w", err)
	}
	defer closeRows(rows)

	return collectExchanges(rows)
}

// TransitionStatus is the single write path for automatic and administrator
// status changes. The compare-and-swap on the current status means the first
// writer wins; everyone else observes ErrStatusConflict and stands down.
func (s *Service) TransitionStatus(ctx context.Context, id string, from, to models.ExchangeStatus) (*models.Exchange, error) {
	if !from.Valid() || !to.Valid() {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, from, to)
	}
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, from, to)
	}

	result, err := s.db.ExecContext(ctx, queryTransitionStatus, string(to), id, string(from))
	if err != nil {
		return nil, fmt.Errorf("failed to transition status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// Either the record is gone or another actor changed the status first.
		if _, getErr := s.GetExchange(ctx, id); errors.Is(getErr, store.ErrExchangeNotFound) {
			return nil, store.ErrExchangeNotFound
		}
		return nil, store.ErrStatusConflict
	}

	zap.L().Info("Exchange status transitioned",
		zap.String("exchange_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	return s.GetExchange(ctx, id)
}

func (s *Service) DeleteExchange(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, queryDeleteExchange, id)
	if err != nil {
		return fmt.Errorf("failed to delete exchange: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return store.ErrExchangeNotFound
	}

	zap.L().Info("Exchange deleted", zap.String("exchange_id", id))
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExchange(row rowScanner) (*models.Exchange, error) {
	var exchange models.Exchange
	var sendStr, receiveStr, feeStr, usdStr, statusStr string

	err := row.Scan(&exchange.Id, &exchange.ExchangeCode, &exchange.UserId,
		&exchange.FromCurrency, &exchange.ToCurrency,
		&sendStr, &receiveStr, &feeStr, &exchange.FeeDetails, &usdStr,
		&statusStr, &exchange.RecipientWalletAddress, &exchange.PaymentMethodId,
		&exchange.CreatedAt, &exchange.UpdatedAt)
	if err != nil {
		return nil, err
	}

	exchange.Status = models.ExchangeStatus(statusStr)
	if exchange.SendAmount, err = decimal.NewFromString(sendStr); err != nil {
		return nil, fmt.Errorf("failed to parse send_amount '%s': %w", sendStr, err)
	}
	if exchange.ReceiveAmount, err = decimal.NewFromString(receiveStr); err != nil {
		return nil, fmt.Errorf("failed to parse receive_amount '%s': %w", receiveStr, err)
	}
	if exchange.FeeAmount, err = decimal.NewFromString(feeStr); err != nil {
		return nil, fmt.Errorf("failed to parse fee_amount '%s': %w", feeStr, err)
	}
	if exchange.UsdValue, err = decimal.NewFromString(usdStr); err != nil {
		return nil, fmt.Errorf("failed to parse usd_value '%s': %w", usdStr, err)
	}

	return &exchange, nil
}

func collectExchanges(rows *sql.Rows) ([]models.Exchange, error) {
	var exchanges []models.Exchange
	for rows.Next() {
		exchange, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		exchanges = append(exchanges, *exchange)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exchange rows: %w", err)
	}
	return exchanges, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

// nullable maps an empty string to NULL so optional columns stay NULL in the
// database instead of empty text.
func nullable(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
