package assignment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tutela.org/internal/auth"
	"tutela.org/internal/jurisdiction"
)

var _ Store = (*PGStore)(nil)

// querier is the slice of database/sql shared by *sql.DB and *sql.Tx so the
// same sub-store code serves plain calls and transactional ones.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PGStore implements Store using PostgreSQL. Partial unique indexes over the
// active rows (see migrations) make Insert the authoritative uniqueness
// check; everything before it is advisory.
type PGStore struct {
	db *sql.DB
	q  querier
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, q: db}
}

func (s *PGStore) Assignments(context.Context) AssignmentStore { return &assignmentStore{db: s.q} }
func (s *PGStore) Officers(context.Context) OfficerDirectory   { return &officerDirectory{db: s.q} }
func (s *PGStore) Individuals(context.Context) IndividualStore { return &individualStore{db: s.q} }
func (s *PGStore) ScopeRefs(context.Context) ScopeReferenceStore {
	return &scopeReferenceStore{db: s.q}
}

// InTx runs fn against a transaction-scoped view of the store. A nested call
// stays on the transaction already in flight.
func (s *PGStore) InTx(ctx context.Context, fn func(Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&PGStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// Assignment store ----------------------------------------------------------
type assignmentStore struct{ db querier }

func (s *assignmentStore) Insert(ctx context.Context, a *Assignment) error {
	var level *int
	if a.Level != nil {
		v := int(*a.Level)
		level = &v
	}
	_, err := s.db.ExecContext(ctx,
		`insert into assignments(id, officer_id, kind, individual_id, level, city_id, district_id, ward_id, status, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.OfficerID, string(a.Kind), a.IndividualID, level,
		a.Scope.CityID, a.Scope.DistrictID, a.Scope.WardID,
		a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyAssigned
	}
	return err
}

func (s *assignmentStore) FindActiveByID(ctx context.Context, id string) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, officer_id, kind, individual_id, level, city_id, district_id, ward_id, status, created_at, updated_at
		 from assignments where id=$1 and status='active'`, id)
	var (
		a     Assignment
		kind  string
		level sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.OfficerID, &kind, &a.IndividualID, &level,
		&a.Scope.CityID, &a.Scope.DistrictID, &a.Scope.WardID,
		&a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	a.Kind = TargetKind(kind)
	if level.Valid {
		lvl := jurisdiction.Level(level.Int64)
		a.Level = &lvl
	}
	return &a, nil
}

func (s *assignmentStore) ExistsActiveIndividual(ctx context.Context, officerID, individualID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from assignments
		 where officer_id=$1 and individual_id=$2 and status='active')`,
		officerID, individualID).Scan(&exists)
	return exists, err
}

func (s *assignmentStore) ExistsActiveCadastral(ctx context.Context, officerID string, scope jurisdiction.Scope) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from assignments
		 where officer_id=$1 and kind='cadastral' and status='active'
		   and city_id is not distinct from $2
		   and district_id is not distinct from $3
		   and ward_id is not distinct from $4)`,
		officerID, scope.CityID, scope.DistrictID, scope.WardID).Scan(&exists)
	return exists, err
}

func (s *assignmentStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update assignments set status='deleted', updated_at=$2 where id=$1 and status='active'`,
		id, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (s *assignmentStore) CountActiveByOfficer(ctx context.Context, officerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from assignments where officer_id=$1 and status='active'`,
		officerID).Scan(&count)
	return count, err
}

func (s *assignmentStore) ListIndividual(ctx context.Context, officerID string, f ListFilter, p Page) ([]IndividualRow, error) {
	query := `select a.id, i.id, i.identity_number, i.full_name, a.created_at
		from assignments a
		join individuals i on i.id = a.individual_id
		where a.officer_id=$1 and a.kind='individual' and a.status='active'`
	args := []any{officerID}
	if f.IdentityNumber != "" {
		args = append(args, "%"+f.IdentityNumber+"%")
		query += fmt.Sprintf(" and i.identity_number like $%d", len(args))
	}
	if f.FullName != "" {
		args = append(args, "%"+f.FullName+"%")
		query += fmt.Sprintf(" and i.full_name ilike $%d", len(args))
	}
	query, args = appendCreatedRange(query, args, "a", f)
	args = append(args, p.Size, p.Offset())
	query += fmt.Sprintf(" order by a.created_at desc limit $%d offset $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []IndividualRow
	for rows.Next() {
		var r IndividualRow
		if err := rows.Scan(&r.AssignmentID, &r.IndividualID, &r.IdentityNumber, &r.FullName, &r.AssignedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *assignmentStore) ListCadastral(ctx context.Context, officerID string, f ListFilter, p Page) ([]CadastralRow, error) {
	query := `select a.id, a.level, a.city_id, a.district_id, a.ward_id,
		coalesce(c.name,''), coalesce(d.name,''), coalesce(w.name,''), a.created_at
		from assignments a
		left join cities c on c.id = a.city_id
		left join districts d on d.id = a.district_id
		left join wards w on w.id = a.ward_id
		where a.officer_id=$1 and a.kind='cadastral' and a.status='active'`
	args := []any{officerID}
	if f.CityID != nil {
		args = append(args, *f.CityID)
		query += fmt.Sprintf(" and a.city_id = $%d", len(args))
	}
	if f.DistrictID != nil {
		args = append(args, *f.DistrictID)
		query += fmt.Sprintf(" and a.district_id = $%d", len(args))
	}
	if f.WardID != nil {
		args = append(args, *f.WardID)
		query += fmt.Sprintf(" and a.ward_id = $%d", len(args))
	}
	query, args = appendCreatedRange(query, args, "a", f)
	args = append(args, p.Size, p.Offset())
	query += fmt.Sprintf(" order by a.created_at desc limit $%d offset $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CadastralRow
	for rows.Next() {
		var (
			r     CadastralRow
			level int
		)
		err := rows.Scan(&r.AssignmentID, &level, &r.Scope.CityID, &r.Scope.DistrictID, &r.Scope.WardID,
			&r.CityName, &r.DistrictName, &r.WardName, &r.AssignedAt)
		if err != nil {
			return nil, err
		}
		r.Level = jurisdiction.Level(level)
		result = append(result, r)
	}
	return result, rows.Err()
}

func appendCreatedRange(query string, args []any, alias string, f ListFilter) (string, []any) {
	if f.CreatedFrom != nil {
		args = append(args, *f.CreatedFrom)
		query += fmt.Sprintf(" and %s.created_at >= $%d", alias, len(args))
	}
	if f.CreatedTo != nil {
		args = append(args, *f.CreatedTo)
		query += fmt.Sprintf(" and %s.created_at < $%d", alias, len(args))
	}
	return query, args
}

// Officer directory ---------------------------------------------------------
type officerDirectory struct{ db querier }

func (s *officerDirectory) FindActiveByID(ctx context.Context, id string) (*auth.Officer, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, identity_number, full_name, role, level, city_id, district_id, ward_id, has_active_assignment
		 from officers where id=$1 and status='active'`, id)
	var (
		o     auth.Officer
		role  string
		level int
	)
	err := row.Scan(&o.ID, &o.IdentityNumber, &o.FullName, &role, &level,
		&o.Scope.CityID, &o.Scope.DistrictID, &o.Scope.WardID, &o.HasActiveAssignment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	o.Role = auth.Role(role)
	o.Level = jurisdiction.Level(level)
	o.Status = auth.StatusActive
	return &o, nil
}

func (s *officerDirectory) SetHasActiveAssignment(ctx context.Context, officerID string, has bool) error {
	_, err := s.db.ExecContext(ctx,
		`update officers set has_active_assignment=$2, updated_at=now() where id=$1`,
		officerID, has)
	return err
}

// Individual store ----------------------------------------------------------
type individualStore struct{ db querier }

func (s *individualStore) FindActiveByID(ctx context.Context, id string) (*Individual, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, identity_number, full_name, owner_officer_id, status, created_at, updated_at
		 from individuals where id=$1 and status='active'`, id)
	var i Individual
	err := row.Scan(&i.ID, &i.IdentityNumber, &i.FullName, &i.OwnerOfficerID, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIndividualNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (s *individualStore) SetOwner(ctx context.Context, individualID string, officerID *string) error {
	_, err := s.db.ExecContext(ctx,
		`update individuals set owner_officer_id=$2, updated_at=now() where id=$1`,
		individualID, officerID)
	return err
}

// Scope reference store -----------------------------------------------------
type scopeReferenceStore struct{ db querier }

func (s *scopeReferenceStore) CityExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, "cities", id)
}

func (s *scopeReferenceStore) DistrictExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, "districts", id)
}

func (s *scopeReferenceStore) WardExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, "wards", id)
}

func (s *scopeReferenceStore) exists(ctx context.Context, table string, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from `+table+` where id=$1 and status='active')`, id).Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key value")
}
