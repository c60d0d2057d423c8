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
	"context"
	"fmt"

	"exchange-settlement-go/internal/models"
)

func userField(userId string) string {
	if userId == "" {
		return "Anonymous"
	}
	return fmt.Sprintf("User ID: `%s`", userId)
}

// ExchangeCreated announces a new exchange entering the pending state.
func (s *Service) ExchangeCreated(ctx context.Context, exchange *models.Exchange, userEmail string) {
	user := userEmail
	if user == "" {
		user = "Anonymous"
	}

	embed := Embed{
		Title: "New Exchange Created",
		Color: colorBlue,
		Fields: []Field{
			{Name: "User", Value: user, Inline: true},
			{Name: "Exchange ID", Value: fmt.Sprintf("`#%s`", exchange.ExchangeCode), Inline: true},
			{Name: "From → To", Value: fmt.Sprintf("%s → %s", exchange.FromCurrency, exchange.ToCurrency), Inline: true},
			{Name: "Amount", Value: fmt.Sprintf("%s %s (~$%s)", exchange.SendAmount.String(), exchange.FromCurrency, exchange.UsdValue.StringFixed(2))},
			{Name: "Status", Value: "Pending Payment"},
			{Name: "Wallet Address", Value: fmt.Sprintf("`%s`", truncateWalletAddress(exchange.RecipientWalletAddress))},
		},
		Footer:    &Footer{Text: "Crypto Exchange | Live Feed"},
		Timestamp: timestamp(),
	}
	s.send(ctx, s.newPayload(embed))
}

// PaymentDetected announces the pending -> confirming edge.
func (s *Service) PaymentDetected(ctx context.Context, exchange *models.Exchange, confirmations, required int) {
	embed := Embed{
		Title: "Payment Detected",
		Color: colorYellow,
		Fields: []Field{
			{Name: "Exchange ID", Value: fmt.Sprintf("`#%s`", exchange.ExchangeCode), Inline: true},
			{Name: "User", Value: userField(exchange.UserId), Inline: true},
			{Name: "Status", Value: fmt.Sprintf("Confirming (%d/%d)", confirmations, required)},
			{Name: "Amount", Value: fmt.Sprintf("%s %s", exchange.SendAmount.String(), exchange.FromCurrency)},
		},
		Footer:    &Footer{Text: "Crypto Exchange | Live Feed"},
		Timestamp: timestamp(),
	}
	s.send(ctx, s.newPayload(embed))
}

// ExchangeCompleted announces a fully settled exchange.
func (s *Service) ExchangeCompleted(ctx context.Context, exchange *models.Exchange) {
	embed := Embed{
		Title: "Exchange Completed",
		Color: colorGreen,
		Fields: []Field{
			{Name: "User", Value: userField(exchange.UserId), Inline: true},
			{Name: "Exchange ID", Value: fmt.Sprintf("`#%s`", exchange.ExchangeCode), Inline: true},
			{Name: "Crypto Sent", Value: fmt.Sprintf("%s %s", exchange.SendAmount.String(), exchange.FromCurrency)},
			{Name: "Crypto Received", Value: fmt.Sprintf("%s %s", exchange.ReceiveAmount.StringFixed(8), exchange.ToCurrency)},
			{Name: "USD Value", Value: "$" + exchange.UsdValue.StringFixed(2), Inline: true},
			{Name: "Wallet Address", Value: fmt.Sprintf("`%s`", truncateWalletAddress(exchange.RecipientWalletAddress))},
		},
		Footer:    &Footer{Text: "Auto-generated by the settlement watcher"},
		Timestamp: timestamp(),
	}
	s.send(ctx, s.newPayload(embed))
}

// ExchangeTimedOut announces cancellation after the deposit window elapsed
// with no qualifying payment. Distinct from an administrator cancellation.
func (s *Service) ExchangeTimedOut(ctx context.Context, exchange *models.Exchange) {
	embed := Embed{
		Title:       "Uncompleted Exchange",
		Description: "The exchange was not completed within the deposit window.",
		Color:       colorRed,
		Fields: []Field{
			{Name: "Exchange ID", Value: fmt.Sprintf("`#%s`", exchange.ExchangeCode), Inline: true},
			{Name: "User", Value: userField(exchange.UserId), Inline: true},
			{Name: "Expected Deposit", Value: fmt.Sprintf("%s %s", exchange.SendAmount.String(), exchange.FromCurrency)},
		},
		Footer:    &Footer{Text: "Auto-generated by the settlement watcher"},
		Timestamp: timestamp(),
	}
	s.send(ctx, s.newPayload(embed))
}

// AdminStatusChanged announces a manual approve or cancel from the back
// office, attributed to the acting administrator.
func (s *Service) AdminStatusChanged(ctx context.Context, exchange *models.Exchange, adminUsername string) {
	title := "Exchange Cancelled by Admin"
	color := colorRed
	if exchange.Status == models.StatusCompleted {
		title = "Exchange Approved by Admin"
		color = colorGreen
	}

	embed := Embed{
		Title: title,
		Color: color,
		Fields: []Field{
			{Name: "User", Value: userField(exchange.UserId), Inline: true},
			{Name: "Exchange ID", Value: fmt.Sprintf("`#%s`", exchange.ExchangeCode), Inline: true},
			{Name: "Admin", Value: adminUsername, Inline: true},
			{Name: "From", Value: fmt.Sprintf("%s %s", exchange.SendAmount.String(), exchange.FromCurrency), Inline: true},
			{Name: "To", Value: fmt.Sprintf("%s %s", exchange.ReceiveAmount.StringFixed(8), exchange.ToCurrency), Inline: true},
			{Name: "Status", Value: string(exchange.Status), Inline: true},
			{Name: "Wallet", Value: fmt.Sprintf("`%s`", truncateWalletAddress(exchange.RecipientWalletAddress))},
		},
		Footer:    &Footer{Text: "Exchange Tracker • Status Update"},
		Timestamp: timestamp(),
	}
	s.send(ctx, s.newPayload(embed))
}
