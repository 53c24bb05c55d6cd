package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"tutela.org/internal/jurisdiction"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Officers(context.Context) OfficerStore { return &officerStore{db: s.db} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore {
	return &refreshTokenStore{db: s.db}
}
func (s *PGStore) Blacklist(context.Context) BlacklistStore { return &pgBlacklist{db: s.db} }

// Officer store -------------------------------------------------------------
type officerStore struct{ db *sql.DB }

const officerColumns = `id, identity_number, full_name, role, level, city_id, district_id, ward_id,
	password_hash, has_active_assignment, status, created_at, updated_at`

func (s *officerStore) Create(ctx context.Context, o *Officer) error {
	_, err := s.db.ExecContext(ctx,
		`insert into officers(id, identity_number, full_name, role, level, city_id, district_id, ward_id, password_hash, status)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.IdentityNumber, o.FullName, string(o.Role), int(o.Level),
		o.Scope.CityID, o.Scope.DistrictID, o.Scope.WardID, o.PasswordHash, o.Status,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *officerStore) Update(ctx context.Context, o *Officer) error {
	res, err := s.db.ExecContext(ctx,
		`update officers set full_name=$2, role=$3, level=$4, city_id=$5, district_id=$6, ward_id=$7, status=$8, updated_at=now()
		 where id=$1`,
		o.ID, o.FullName, string(o.Role), int(o.Level),
		o.Scope.CityID, o.Scope.DistrictID, o.Scope.WardID, o.Status,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *officerStore) FindActiveByID(ctx context.Context, id string) (*Officer, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+officerColumns+` from officers where id=$1 and status='active'`, id)
	return scanOfficer(row)
}

func (s *officerStore) FindActiveByIdentityNumber(ctx context.Context, identityNumber string) (*Officer, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+officerColumns+` from officers where identity_number=$1 and status='active'`, identityNumber)
	return scanOfficer(row)
}

func scanOfficer(row *sql.Row) (*Officer, error) {
	var (
		o     Officer
		role  string
		level int
	)
	err := row.Scan(&o.ID, &o.IdentityNumber, &o.FullName, &role, &level,
		&o.Scope.CityID, &o.Scope.DistrictID, &o.Scope.WardID,
		&o.PasswordHash, &o.HasActiveAssignment, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.Role = Role(role)
	o.Level = jurisdiction.Level(level)
	return &o, nil
}

// Refresh token store -------------------------------------------------------
type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Upsert(ctx context.Context, tok *RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(officer_id, token_hash, expires_at, created_at)
		 values($1,$2,$3,$4)
		 on conflict (officer_id) do update
		 set token_hash = excluded.token_hash,
		     expires_at = excluded.expires_at,
		     created_at = excluded.created_at`,
		tok.OfficerID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt,
	)
	return err
}

func (s *refreshTokenStore) FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select officer_id, token_hash, expires_at, created_at from refresh_tokens where token_hash=$1`,
		tokenHash)
	var tok RefreshToken
	if err := row.Scan(&tok.OfficerID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tok, nil
}

func (s *refreshTokenStore) DeleteByOfficer(ctx context.Context, officerID string) error {
	_, err := s.db.ExecContext(ctx, `delete from refresh_tokens where officer_id=$1`, officerID)
	return err
}

// Blacklist store -----------------------------------------------------------
// Append-only; rows are never deleted even after the underlying token has
// long expired. Expiry alone already rejects those, retention is harmless.
type pgBlacklist struct{ db *sql.DB }

func (s *pgBlacklist) Revoke(ctx context.Context, token string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`insert into revoked_tokens(token, revoked_at) values($1,$2) on conflict (token) do nothing`,
		token, at,
	)
	return err
}

func (s *pgBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from revoked_tokens where token=$1)`, token).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// pgx surfaces postgres errors with the SQLSTATE embedded; 23505 is
	// unique_violation.
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key value")
}
