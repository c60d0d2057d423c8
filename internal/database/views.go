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
	"errors"
	"fmt"

	"exchange-settlement-go/internal/models"
	"exchange-settlement-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetExchangeDetails returns the exchange joined with the payment method the
// user is expected to pay into. The tracking view and the deposit watcher
// both read this.
func (s *Service) GetExchangeDetails(ctx context.Context, id string) (*models.ExchangeDetails, error) {
	exchange, err := s.GetExchange(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &models.ExchangeDetails{Exchange: *exchange}
	if exchange.PaymentMethodId != "" {
		method, err := s.GetPaymentMethod(ctx, exchange.PaymentMethodId)
		if err != nil {
			// A missing payment method leaves the exchange unverifiable but
			// still trackable.
			zap.L().Warn("Payment method lookup failed for exchange",
				zap.String("exchange_id", id),
				zap.String("payment_method_id", exchange.PaymentMethodId),
				zap.Error(err))
		} else {
			details.PaymentMethod = method
		}
	}
	return details, nil
}

func (s *Service) GetAdminExchanges(ctx context.Context) ([]models.AdminExchange, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAdminExchanges)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin exchanges: %w", err)
	}
	defer closeRows(rows)

	var results []models.AdminExchange
	for rows.Next() {
		var row models.AdminExchange
		var sendStr, receiveStr, feeStr, usdStr, statusStr string
		err := rows.Scan(&row.Id, &row.ExchangeCode, &row.UserId,
			&row.FromCurrency, &row.ToCurrency,
			&sendStr, &receiveStr, &feeStr, &row.FeeDetails, &usdStr,
			&statusStr, &row.RecipientWalletAddress, &row.PaymentMethodId,
			&row.CreatedAt, &row.UpdatedAt,
			&row.Username, &row.Email, &row.AvatarUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin exchange: %w", err)
		}
		row.Status = models.ExchangeStatus(statusStr)
		if row.SendAmount, err = decimal.NewFromString(sendStr); err != nil {
			return nil, fmt.Errorf("failed to parse send_amount '%s': %w", sendStr, err)
		}
		if row.ReceiveAmount, err = decimal.NewFromString(receiveStr); err != nil {
			return nil, fmt.Errorf("failed to parse receive_amount '%s': %w", receiveStr, err)
		}
		if row.FeeAmount, err = decimal.NewFromString(feeStr); err != nil {
			return nil, fmt.Errorf("failed to parse fee_amount '%s': %w", feeStr, err)
		}
		if row.UsdValue, err = decimal.NewFromString(usdStr); err != nil {
			return nil, fmt.Errorf("failed to parse usd_value '%s': %w", usdStr, err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admin exchange rows: %w", err)
	}
	return results, nil
}

func (s *Service) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	var volume float64
	err := s.db.QueryRowContext(ctx, queryGetDashboardStats).Scan(
		&stats.TotalExchanges, &stats.PendingExchanges,
		&stats.CompletedExchanges, &stats.CancelledExchanges,
		&volume, &stats.UniqueUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard stats: %w", err)
	}
	stats.CompletedVolumeUsd = decimal.NewFromFloat(volume)
	return &stats, nil
}

func (s *Service) GetTopUsersByVolume(ctx context.Context, limit int) ([]models.TopUser, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, queryGetTopUsersByVolume, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer closeRows(rows)

	var users []models.TopUser
	for rows.Next() {
		var user models.TopUser
		var volume float64
		if err := rows.Scan(&user.UserId, &user.Username, &user.AvatarUrl, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan top user: %w", err)
		}
		user.TotalVolume = decimal.NewFromFloat(volume)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top user rows: %w", err)
	}
	return users, nil
}

func (s *Service) GetUsersWithDetails(ctx context.Context) ([]models.UserDetails, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUsersWithDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to get users with details: %w", err)
	}
	defer closeRows(rows)

	var users []models.UserDetails
	for rows.Next() {
		var user models.UserDetails
		if err := rows.Scan(&user.Id, &user.Username, &user.Email, &user.AvatarUrl,
			&user.Role, &user.CreatedAt, &user.ExchangeCount); err != nil {
			return nil, fmt.Errorf("failed to scan user details: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user detail rows: %w", err)
	}
	return users, nil
}

// IsAdmin reports whether the given user has the admin role.
func (s *Service) IsAdmin(ctx context.Context, userId string) (bool, error) {
	profile, err := s.GetProfile(ctx, userId)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.Role == "admin", nil
}
