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

const (
	exchangeColumns = `
		id, exchange_code, COALESCE(user_id, ''), from_currency, to_currency,
		send_amount, receive_amount, fee_amount, fee_details, usd_value,
		status, COALESCE(recipient_wallet_address, ''), COALESCE(payment_method_id, ''),
		created_at, updated_at`

	// Exchange queries
	queryInsertExchange = `
		INSERT INTO exchanges (
			id, exchange_code, user_id, from_currency, to_currency,
			send_amount, receive_amount, fee_amount, fee_details, usd_value,
			status, recipient_wallet_address, payment_method_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetExchange = `
		SELECT ` + exchangeColumns + `
		FROM exchanges
		WHERE id = ?`

	queryGetExchangeByCode = `
		SELECT ` + exchangeColumns + `
		FROM exchanges
		WHERE exchange_code = ?`

	queryListPendingExchanges = `
		SELECT ` + exchangeColumns + `
		FROM exchanges
		WHERE status = 'pending'
		ORDER BY created_at`

	// Optimistic transition: the WHERE clause on status makes the update a
	// compare-and-swap so concurrent administrator writes win cleanly.
	queryTransitionStatus = `
		UPDATE exchanges
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`

	queryDeleteExchange = `
		DELETE FROM exchanges WHERE id = ?`

	queryGetUserExchanges = `
		SELECT ` + exchangeColumns + `
		FROM exchanges
		WHERE user_id = ?
		ORDER BY created_at DESC`

	// Catalog queries
	queryGetPaymentMethod = `
		SELECT id, method, detail_type, details, qr_code_url, created_at
		FROM payment_methods
		WHERE id = ?`

	queryUpsertPaymentMethod = `
		INSERT INTO payment_methods (id, method, detail_type, details, qr_code_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(method) DO UPDATE SET
			detail_type = excluded.detail_type,
			details = excluded.details,
			qr_code_url = excluded.qr_code_url`

	queryFindPaymentMethodByLabel = `
		SELECT id, method, detail_type, details, qr_code_url, created_at
		FROM payment_methods
		WHERE method = ?`

	queryListCurrencies = `
		SELECT id, symbol, name, type, icon_url, created_at
		FROM currencies
		ORDER BY name`

	queryUpsertCurrency = `
		INSERT INTO currencies (id, symbol, name, type, icon_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			icon_url = excluded.icon_url`

	queryGetExchangePair = `
		SELECT id, from_currency, to_currency, fee, fee_type, COALESCE(payment_method_id, ''), created_at
		FROM exchange_pairs
		WHERE from_currency = ? AND to_currency = ?`

	queryListExchangePairs = `
		SELECT id, from_currency, to_currency, fee, fee_type, COALESCE(payment_method_id, ''), created_at
		FROM exchange_pairs
		ORDER BY from_currency, to_currency`

	queryUpsertExchangePair = `
		INSERT INTO exchange_pairs (id, from_currency, to_currency, fee, fee_type, payment_method_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_currency, to_currency) DO UPDATE SET
			fee = excluded.fee,
			fee_type = excluded.fee_type,
			payment_method_id = excluded.payment_method_id`

	queryGetProfile = `
		SELECT id, username, email, avatar_url, role, created_at
		FROM profiles
		WHERE id = ?`

	queryUpsertProfile = `
		INSERT INTO profiles (id, username, email, avatar_url, role)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			avatar_url = excluded.avatar_url,
			role = excluded.role`

	// Aggregated views
	queryGetAdminExchanges = `
		SELECT e.id, e.exchange_code, COALESCE(e.user_id, ''), e.from_currency, e.to_currency,
		       e.send_amount, e.receive_amount, e.fee_amount, e.fee_details, e.usd_value,
		       e.status, COALESCE(e.recipient_wallet_address, ''), COALESCE(e.payment_method_id, ''),
		       e.created_at, e.updated_at,
		       COALESCE(p.username, ''), COALESCE(p.email, ''), COALESCE(p.avatar_url, '')
		FROM exchanges e
		LEFT JOIN profiles p ON e.user_id = p.id
		ORDER BY e.created_at DESC`

	queryGetDashboardStats = `
		SELECT COUNT(*),
		       COUNT(CASE WHEN status = 'pending' THEN 1 END),
		       COUNT(CASE WHEN status = 'completed' THEN 1 END),
		       COUNT(CASE WHEN status = 'cancelled' THEN 1 END),
		       COALESCE(SUM(CASE WHEN status = 'completed' THEN CAST(usd_value AS REAL) END), 0),
		       COUNT(DISTINCT user_id)
		FROM exchanges`

	queryGetTopUsersByVolume = `
		SELECT e.user_id, COALESCE(p.username, ''), COALESCE(p.avatar_url, ''),
		       SUM(CAST(e.usd_value AS REAL)) AS total_volume
		FROM exchanges e
		LEFT JOIN profiles p ON e.user_id = p.id
		WHERE e.status = 'completed' AND e.user_id IS NOT NULL AND e.user_id != ''
		GROUP BY e.user_id
		ORDER BY total_volume DESC
		LIMIT ?`

	queryGetUsersWithDetails = `
		SELECT p.id, p.username, p.email, p.avatar_url, p.role, p.created_at,
		       COUNT(e.id)
		FROM profiles p
		LEFT JOIN exchanges e ON e.user_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at`
)
