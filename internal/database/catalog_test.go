package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"exchange-settlement-go/internal/store"
)

func TestUpsertAndListCurrencies(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.UpsertCurrency(ctx, "BTC", "Bitcoin", "crypto", ""); err != nil {
		t.Fatalf("UpsertCurrency failed: %v", err)
	}
	if err := service.UpsertCurrency(ctx, "USD", "US Dollar", "fiat", ""); err != nil {
		t.Fatalf("UpsertCurrency failed: %v", err)
	}
	// Re-seeding the same symbol updates in place.
	if err := service.UpsertCurrency(ctx, "BTC", "Bitcoin Core", "crypto", "https://example.com/btc.png"); err != nil {
		t.Fatalf("UpsertCurrency failed: %v", err)
	}

	currencies, err := service.ListCurrencies(ctx)
	if err != nil {
		t.Fatalf("ListCurrencies failed: %v", err)
	}
	if len(currencies) != 2 {
		t.Fatalf("Expected 2 currencies, got %d", len(currencies))
	}

	byName := map[string]string{}
	for _, c := range currencies {
		byName[c.Symbol] = c.Name
	}
	if byName["BTC"] != "Bitcoin Core" {
		t.Errorf("Expected updated name for BTC, got %q", byName["BTC"])
	}
}

func TestGetExchangePair(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.UpsertExchangePair(ctx, "BTC", "USDT", 1.5, "percentage", ""); err != nil {
		t.Fatalf("UpsertExchangePair failed: %v", err)
	}

	pair, err := service.GetExchangePair(ctx, "BTC", "USDT")
	if err != nil {
		t.Fatalf("GetExchangePair failed: %v", err)
	}
	if pair.Fee != 1.5 || pair.FeeType != "percentage" {
		t.Errorf("Unexpected fee policy: %v %s", pair.Fee, pair.FeeType)
	}

	// Pairs are directional.
	_, err = service.GetExchangePair(ctx, "USDT", "BTC")
	if !errors.Is(err, store.ErrPairNotFound) {
		t.Errorf("Expected ErrPairNotFound for reverse pair, got %v", err)
	}
}

func TestPaymentMethodLookup(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.UpsertPaymentMethod(ctx, "btc-treasury", "address", "bc1qexampleaddress", ""); err != nil {
		t.Fatalf("UpsertPaymentMethod failed: %v", err)
	}

	method, err := service.FindPaymentMethodByLabel(ctx, "btc-treasury")
	if err != nil {
		t.Fatalf("FindPaymentMethodByLabel failed: %v", err)
	}
	if method.Details != "bc1qexampleaddress" {
		t.Errorf("Unexpected details %q", method.Details)
	}

	fetched, err := service.GetPaymentMethod(ctx, method.Id)
	if err != nil {
		t.Fatalf("GetPaymentMethod failed: %v", err)
	}
	if fetched.Method != "btc-treasury" {
		t.Errorf("Unexpected method %q", fetched.Method)
	}
}

func TestUpsertPaymentMethod_ReseedKeepsOneRow(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	service := NewServiceWithDb(db)
	if err := service.InitSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	ctx := context.Background()
	if err := service.UpsertPaymentMethod(ctx, "btc-treasury", "address", "bc1qoldaddress", ""); err != nil {
		t.Fatalf("UpsertPaymentMethod failed: %v", err)
	}
	original, err := service.FindPaymentMethodByLabel(ctx, "btc-treasury")
	if err != nil {
		t.Fatalf("FindPaymentMethodByLabel failed: %v", err)
	}

	// Re-seeding the same label updates the row in place.
	if err := service.UpsertPaymentMethod(ctx, "btc-treasury", "address", "bc1qnewaddress", ""); err != nil {
		t.Fatalf("UpsertPaymentMethod failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM payment_methods").Scan(&count); err != nil {
		t.Fatalf("Failed to count payment methods: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 payment method after re-seeding, got %d", count)
	}

	updated, err := service.FindPaymentMethodByLabel(ctx, "btc-treasury")
	if err != nil {
		t.Fatalf("FindPaymentMethodByLabel failed: %v", err)
	}
	if updated.Id != original.Id {
		t.Errorf("Expected id %s to survive re-seeding, got %s", original.Id, updated.Id)
	}
	if updated.Details != "bc1qnewaddress" {
		t.Errorf("Expected updated details, got %q", updated.Details)
	}
}

func TestProfileAndIsAdmin(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	err := service.UpsertProfile(ctx, store.UpsertProfileParams{
		Id:       "user1",
		Username: "satoshi",
		Email:    "satoshi@example.com",
		Role:     "user",
	})
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	profile, err := service.GetProfile(ctx, "user1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if profile.Username != "satoshi" {
		t.Errorf("Unexpected username %q", profile.Username)
	}

	isAdmin, err := service.IsAdmin(ctx, "user1")
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if isAdmin {
		t.Error("Expected user role to not be admin")
	}

	err = service.UpsertProfile(ctx, store.UpsertProfileParams{
		Id:       "user1",
		Username: "satoshi",
		Email:    "satoshi@example.com",
		Role:     "admin",
	})
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	isAdmin, err = service.IsAdmin(ctx, "user1")
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if !isAdmin {
		t.Error("Expected admin role after update")
	}

	// Unknown users are simply not admins.
	isAdmin, err = service.IsAdmin(ctx, "ghost")
	if err != nil {
		t.Fatalf("IsAdmin failed for unknown user: %v", err)
	}
	if isAdmin {
		t.Error("Expected unknown user to not be admin")
	}

	_, err = service.GetProfile(ctx, "ghost")
	if !errors.Is(err, store.ErrProfileNotFound) {
		t.Errorf("Expected ErrProfileNotFound, got %v", err)
	}
}
