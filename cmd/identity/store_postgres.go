package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulse/cmd/identity/ids"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must not close it.
// Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, OpError{Op: "identity.NewPostgresStore", Kind: ErrInvalidInput, Msg: "nil pool"}
	}
	return &PostgresStore{pool: pool}, nil
}

const userColumns = `id, name, email, active, verified, status_id,
	created_at, created_by, updated_at, updated_by`

// CreateUser inserts a new user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	name := strings.TrimSpace(in.Name)
	if name == "" || in.PasswordHash == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "name and password hash required"}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	u := User{
		ID:       ids.NewUUID(),
		Name:     name,
		Email:    in.Email,
		Active:   in.Active,
		Verified: in.Verified,
		Audit:    Audit{CreatedAt: now, CreatedBy: in.CreatedBy, UpdatedAt: now, UpdatedBy: in.CreatedBy},
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (
			id, name, name_norm, email, password_hash, active, verified,
			created_at, created_by, updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $8, $9)
	`, u.ID, u.Name, NormalizeUsername(u.Name), u.Email, in.PasswordHash, u.Active, u.Verified,
		now, in.CreatedBy)
	if err != nil {
		if field, ok := pgUniqueViolationField(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return u, nil
}

// GetUserByID loads a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByID", `WHERE id = $1`, id)
}

// GetUserByName loads a user by normalized name.
func (s *PostgresStore) GetUserByName(ctx context.Context, name string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByName", `WHERE name_norm = $1`, NormalizeUsername(name))
}

func (s *PostgresStore) getUser(ctx context.Context, op, where string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users `+where,
		arg,
	).Scan(
		&u.ID, &u.Name, &u.Email, &u.Active, &u.Verified, &u.StatusID,
		&u.Audit.CreatedAt, &u.Audit.CreatedBy, &u.Audit.UpdatedAt, &u.Audit.UpdatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserAuthByName loads a user with its password hash for login checks.
func (s *PostgresStore) GetUserAuthByName(ctx context.Context, name string) (UserAuth, error) {
	const op = "identity.GetUserAuthByName"

	var ua UserAuth
	err := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`, password_hash
		FROM users
		WHERE name_norm = $1
	`, NormalizeUsername(name)).Scan(
		&ua.User.ID, &ua.User.Name, &ua.User.Email, &ua.User.Active, &ua.User.Verified, &ua.User.StatusID,
		&ua.User.Audit.CreatedAt, &ua.User.Audit.CreatedBy, &ua.User.Audit.UpdatedAt, &ua.User.Audit.UpdatedBy,
		&ua.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return UserAuth{}, err
	}
	return ua, nil
}

// ResolveMachine finds a machine by (hostname, unique id) and bumps its
// last-seen timestamp, or inserts a new row when unseen.
func (s *PostgresStore) ResolveMachine(ctx context.Context, in ResolveMachineInput) (Machine, error) {
	const op = "identity.ResolveMachine"

	name := NormalizeHostname(in.Name)
	uniqueID := strings.TrimSpace(in.UniqueID)
	if name == "" || uniqueID == "" {
		return Machine{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "hostname and unique id required"}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var m Machine
	err := s.pool.QueryRow(ctx, `
		UPDATE machines
		SET last_seen_at = $3, updated_at = $3
		WHERE name = $1 AND unique_id = $2
		RETURNING id, name, unique_id, mac, os, cpu, gpu, ram, last_seen_at, active,
			created_at, created_by, updated_at, updated_by
	`, name, uniqueID, now).Scan(
		&m.ID, &m.Name, &m.UniqueID, &m.MAC, &m.OS, &m.CPU, &m.GPU, &m.RAM, &m.LastSeenAt, &m.Active,
		&m.Audit.CreatedAt, &m.Audit.CreatedBy, &m.Audit.UpdatedAt, &m.Audit.UpdatedBy,
	)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Machine{}, err
	}

	m = Machine{
		ID:         ids.NewUUID(),
		Name:       name,
		UniqueID:   uniqueID,
		MAC:        in.MAC,
		OS:         in.OS,
		CPU:        in.CPU,
		GPU:        in.GPU,
		RAM:        in.RAM,
		LastSeenAt: &now,
		Active:     true,
		Audit:      Audit{CreatedAt: now, UpdatedAt: now},
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO machines (
			id, name, unique_id, mac, os, cpu, gpu, ram, last_seen_at, active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $9, $9)
	`, m.ID, m.Name, m.UniqueID, m.MAC, m.OS, m.CPU, m.GPU, m.RAM, now)
	if err != nil {
		// Lost a race with a concurrent handshake for the same machine:
		// retry the update path once.
		if _, ok := pgUniqueViolationField(err); ok {
			return s.ResolveMachine(ctx, in)
		}
		return Machine{}, err
	}

	return m, nil
}

// AssignRoleDiscipline grants a (role, discipline) pair to a user.
func (s *PostgresStore) AssignRoleDiscipline(ctx context.Context, userID, roleID, disciplineID string, now time.Time) error {
	const op = "identity.AssignRoleDiscipline"

	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_role_disciplines (id, user_id, role_id, discipline_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, ids.NewUUID(), userID, roleID, disciplineID, now)
	if err != nil {
		if _, ok := pgUniqueViolationField(err); ok {
			return ConflictError{Op: op, Field: "user_role_discipline"}
		}
		if pgIsForeignKeyViolation(err) {
			return OpError{Op: op, Kind: ErrNotFound, Msg: "user, role, or discipline missing"}
		}
		return err
	}
	return nil
}

// RoleNamesForUser returns the distinct role names held by a user.
func (s *PostgresStore) RoleNamesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT r.name
		FROM user_role_disciplines urd
		JOIN roles r ON r.id = urd.role_id
		WHERE urd.user_id = $1
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ---- pg error classification ----

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}

func pgUniqueViolationField(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable constraint names; fall back to substring heuristics.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "uq_users_name_norm":
		return "name", true
	case "uq_machines_name_unique_id":
		return "machine", true
	case "uq_user_role_disciplines_triple":
		return "user_role_discipline", true
	default:
		switch {
		case strings.Contains(c, "name"):
			return "name", true
		case strings.Contains(c, "machine"):
			return "machine", true
		default:
			return "unknown", true
		}
	}
}
