package store

import (
	"context"
	"errors"

	"exchange-settlement-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrExchangeNotFound  = errors.New("exchange not found")
	ErrStatusConflict    = errors.New("exchange status changed by another actor")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPairNotFound      = errors.New("exchange pair not supported")
	ErrProfileNotFound   = errors.New("profile not found")
)

// CreateExchangeParams contains the parameters for inserting a new exchange.
// The rate is locked in by the caller; the store persists what it is given.
type CreateExchangeParams struct {
	UserId                 string
	FromCurrency           string
	ToCurrency             string
	SendAmount             decimal.Decimal
	ReceiveAmount          decimal.Decimal
	FeeAmount              decimal.Decimal
	FeeDetails             string
	UsdValue               decimal.Decimal
	RecipientWalletAddress string
	PaymentMethodId        string
}

// UpsertProfileParams contains the parameters for seeding a user profile.
type UpsertProfileParams struct {
	Id        string
	Username  string
	Email     string
	AvatarUrl string
	Role      string
}

// ExchangeStore defines the contract the settlement core requires from its
// persistence backend.
type ExchangeStore interface {
	// --- Exchanges ---
	CreateExchange(ctx context.Context, params CreateExchangeParams) (*models.Exchange, error)
	GetExchange(ctx context.Context, id string) (*models.Exchange, error)
	GetExchangeByCode(ctx context.Context, code string) (*models.Exchange, error)
	ListPendingExchanges(ctx context.Context) ([]models.Exchange, error)
	// TransitionStatus applies from -> to only if the stored status still
	// equals from, returning ErrStatusConflict otherwise. The returned record
	// reflects the new status.
	TransitionStatus(ctx context.Context, id string, from, to models.ExchangeStatus) (*models.Exchange, error)
	DeleteExchange(ctx context.Context, id string) error

	// --- Catalog ---
	GetPaymentMethod(ctx context.Context, id string) (*models.PaymentMethod, error)
	ListCurrencies(ctx context.Context) ([]models.Currency, error)
	GetExchangePair(ctx context.Context, from, to string) (*models.ExchangePair, error)
	ListExchangePairs(ctx context.Context) ([]models.ExchangePair, error)
	GetProfile(ctx context.Context, userId string) (*models.Profile, error)
	// IsAdmin reports whether the user's profile carries the admin role.
	// Unknown users are simply not admins.
	IsAdmin(ctx context.Context, userId string) (bool, error)

	// --- Aggregated views ---
	GetExchangeDetails(ctx context.Context, id string) (*models.ExchangeDetails, error)
	GetAdminExchanges(ctx context.Context) ([]models.AdminExchange, error)
	GetDashboardStats(ctx context.Context) (*models.DashboardStats, error)
	GetTopUsersByVolume(ctx context.Context, limit int) ([]models.TopUser, error)
	GetUserExchanges(ctx context.Context, userId string) ([]models.Exchange, error)
	GetUsersWithDetails(ctx context.Context) ([]models.UserDetails, error)

	// --- Lifecycle ---
	Close()
}
