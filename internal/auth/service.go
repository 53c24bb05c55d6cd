package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tutela.org/internal/ids"
	"tutela.org/internal/jurisdiction"
)

const (
	defaultIssuer     = "tutela"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Service owns the session lifecycle: login, access/refresh issuance,
// rotation and revocation.
type Service struct {
	officers  OfficerStore
	refresh   RefreshTokenStore
	blacklist BlacklistStore

	secret []byte
	cipher *RefreshCipher

	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = strings.TrimSpace(issuer)
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithBlacklist swaps the revocation list implementation, e.g. for the
// Redis-backed list in multi-instance deployments.
func WithBlacklist(b BlacklistStore) ServiceOption {
	return func(s *Service) error {
		if b != nil {
			s.blacklist = b
		}
		return nil
	}
}

// NewService constructs the session service over the given store.
func NewService(store Store, secret string, cipher *RefreshCipher, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if cipher == nil {
		return nil, errors.New("auth: refresh cipher is required")
	}
	ctx := context.Background()
	svc := &Service{
		officers:   store.Officers(ctx),
		refresh:    store.RefreshTokens(ctx),
		blacklist:  store.Blacklist(ctx),
		secret:     []byte(secret),
		cipher:     cipher,
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Login authenticates an officer by identity number and password and issues
// a fresh token pair. All credential failures collapse into ErrUnauthorized
// so callers cannot probe which part was wrong.
func (s *Service) Login(ctx context.Context, identityNumber, password string) (TokenPair, *Officer, error) {
	identityNumber = strings.TrimSpace(identityNumber)
	if identityNumber == "" || password == "" {
		return TokenPair{}, nil, ErrUnauthorized
	}
	officer, err := s.officers.FindActiveByIdentityNumber(ctx, identityNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrUnauthorized
		}
		return TokenPair{}, nil, err
	}
	if err := VerifyPassword(officer.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	pair, err := s.mintTokens(ctx, officer)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, officer, nil
}

// VerifyAccessToken checks revocation, signature and expiry of a raw access
// token and returns its claims. The blacklist is consulted before the token
// is trusted for admission.
func (s *Service) VerifyAccessToken(ctx context.Context, raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	revoked, err := s.blacklist.IsRevoked(ctx, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevokedToken
	}
	claims, err := s.parseAccessToken(raw, true)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifySession resolves a raw access token into the caller principal.
func (s *Service) VerifySession(ctx context.Context, raw string) (Principal, error) {
	claims, err := s.VerifyAccessToken(ctx, raw)
	if err != nil {
		return Principal{}, err
	}
	officer, err := s.officers.FindActiveByIdentityNumber(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	return PrincipalOf(officer), nil
}

// Refresh exchanges a transport-form refresh token for a brand-new pair.
// Rotation is total: the stored credential is overwritten, so every
// earlier-issued refresh value for the officer stops working.
func (s *Service) Refresh(ctx context.Context, encryptedRefreshToken string) (TokenPair, *Officer, error) {
	plain, err := s.cipher.Decrypt(strings.TrimSpace(encryptedRefreshToken))
	if err != nil {
		return TokenPair{}, nil, ErrInvalidRefreshToken
	}
	record, err := s.refresh.FindByHash(ctx, hashRefreshSecret(plain))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidRefreshToken
		}
		return TokenPair{}, nil, err
	}
	if !record.ExpiresAt.After(s.now()) {
		return TokenPair{}, nil, ErrInvalidRefreshToken
	}
	officer, err := s.officers.FindActiveByID(ctx, record.OfficerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidRefreshToken
		}
		return TokenPair{}, nil, err
	}
	pair, err := s.mintTokens(ctx, officer)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, officer, nil
}

// Logout blacklists the literal access token string and deletes the
// officer's stored refresh credential, ending the session. Calling it again
// with the same token is a no-op.
func (s *Service) Logout(ctx context.Context, rawAccessToken string) error {
	rawAccessToken = strings.TrimSpace(rawAccessToken)
	if rawAccessToken == "" {
		return ErrInvalidToken
	}
	// Expired tokens may still be logged out; only the signature must hold.
	claims, err := s.parseAccessToken(rawAccessToken, false)
	if err != nil {
		return err
	}
	if err := s.blacklist.Revoke(ctx, rawAccessToken, s.now().UTC()); err != nil {
		return err
	}
	officer, err := s.officers.FindActiveByIdentityNumber(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.refresh.DeleteByOfficer(ctx, officer.ID)
}

// RegisterOfficer performs the administrative insert of a new officer.
func (s *Service) RegisterOfficer(ctx context.Context, o *Officer, password string) error {
	o.IdentityNumber = strings.TrimSpace(o.IdentityNumber)
	o.FullName = strings.TrimSpace(o.FullName)
	if o.IdentityNumber == "" {
		return fmt.Errorf("%w: identity_number is required", ErrInvalidInput)
	}
	if o.FullName == "" {
		return fmt.Errorf("%w: full_name is required", ErrInvalidInput)
	}
	if !o.Role.Valid() {
		return fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, o.Role)
	}
	if err := jurisdiction.Validate(o.Level, o.Scope); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if o.ID == "" {
		o.ID = ids.New()
	}
	o.PasswordHash = hash
	o.Status = StatusActive
	return s.officers.Create(ctx, o)
}

// UpdateOfficer applies a partial update to an existing officer. A status of
// StatusDeleted soft-deletes the record; nothing is ever removed physically.
func (s *Service) UpdateOfficer(ctx context.Context, id string, upd OfficerUpdate) (*Officer, error) {
	officer, err := s.officers.FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.FullName != nil {
		trimmed := strings.TrimSpace(*upd.FullName)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: full_name is required", ErrInvalidInput)
		}
		officer.FullName = trimmed
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return nil, fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, *upd.Role)
		}
		officer.Role = *upd.Role
	}
	if upd.Level != nil || upd.Scope != nil {
		level := officer.Level
		scope := officer.Scope
		if upd.Level != nil {
			level = *upd.Level
		}
		if upd.Scope != nil {
			scope = *upd.Scope
		}
		if err := jurisdiction.Validate(level, scope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		officer.Level = level
		officer.Scope = scope
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != StatusActive && status != StatusDeleted {
			return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
		}
		officer.Status = status
	}
	if err := s.officers.Update(ctx, officer); err != nil {
		return nil, err
	}
	return officer, nil
}

// OfficerUpdate is a partial officer mutation; nil fields are left untouched.
type OfficerUpdate struct {
	FullName *string
	Role     *Role
	Level    *jurisdiction.Level
	Scope    *jurisdiction.Scope
	Status   *string
}

// PrincipalOf projects an officer record into its principal view.
func PrincipalOf(o *Officer) Principal {
	return Principal{
		OfficerID:      o.ID,
		IdentityNumber: o.IdentityNumber,
		FullName:       o.FullName,
		Role:           o.Role,
		Level:          o.Level,
		Scope:          o.Scope,
	}
}

func (s *Service) mintTokens(ctx context.Context, officer *Officer) (TokenPair, error) {
	now := s.now()
	accessToken, accessExp, err := s.signAccessToken(officer, now)
	if err != nil {
		return TokenPair{}, err
	}
	plainRefresh, record, err := s.generateRefreshToken(officer.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.refresh.Upsert(ctx, record); err != nil {
		return TokenPair{}, err
	}
	encryptedRefresh, err := s.cipher.Encrypt(plainRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     encryptedRefresh,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *Service) signAccessToken(officer *Officer, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.accessTTL)
	claims := Claims{
		Role:  officer.Role,
		Level: officer.Level,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   officer.IdentityNumber,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *Service) generateRefreshToken(officerID string, now time.Time) (string, *RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	plain := base64.RawURLEncoding.EncodeToString(secretBytes)
	record := &RefreshToken{
		OfficerID: officerID,
		TokenHash: hashRefreshSecret(plain),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now.UTC(),
	}
	return plain, record, nil
}

func (s *Service) parseAccessToken(raw string, validateClaims bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
	}
	if !validateClaims {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || !claims.Role.Valid() || !claims.Level.Valid() {
		return nil, ErrInvalidToken
	}
	if validateClaims {
		// A token whose expiry equals "now" exactly is already expired.
		if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(s.now()) {
			return nil, ErrExpiredToken
		}
	}
	return claims, nil
}

func hashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
