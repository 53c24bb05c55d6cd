package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations required by the session
// subsystem. Entity storage itself lives behind these contracts.
type Store interface {
	Officers(ctx context.Context) OfficerStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
	Blacklist(ctx context.Context) BlacklistStore
}

// OfficerStore manages officer records. Find operations only surface active
// officers; deleted officers are invisible to the session layer.
type OfficerStore interface {
	Create(ctx context.Context, o *Officer) error
	Update(ctx context.Context, o *Officer) error
	FindActiveByID(ctx context.Context, id string) (*Officer, error)
	FindActiveByIdentityNumber(ctx context.Context, identityNumber string) (*Officer, error)
}

// RefreshTokenStore keeps at most one refresh credential per officer.
// Upsert overwrites the previous row; the superseded secret can then no
// longer be found and is effectively dead.
type RefreshTokenStore interface {
	Upsert(ctx context.Context, tok *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	DeleteByOfficer(ctx context.Context, officerID string) error
}

// BlacklistStore is the append-only revocation list. Implementations must be
// shared state visible to every request-handling worker; per-process caching
// of membership is not permitted.
type BlacklistStore interface {
	Revoke(ctx context.Context, token string, at time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}
