package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulse/cmd/internal/repo"
)

// PostgresStore persists sessions in the sessions table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `id, user_id, machine_id, ip_address, session_data,
	login_time, logout_time,
	continued_from_session, continued_by_session,
	previous_session_end_time, time_since_previous_session,
	created_at, created_by, updated_at, updated_by`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.UserID, &s.MachineID, &s.IPAddress, &s.SessionData,
		&s.LoginTime, &s.LogoutTime,
		&s.ContinuedFrom, &s.ContinuedBy,
		&s.PreviousSessionEndTime, &s.TimeSincePreviousSession,
		&s.Audit.CreatedAt, &s.Audit.CreatedBy, &s.Audit.UpdatedAt, &s.Audit.UpdatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

// InTx runs fn in a database transaction; the Tx it passes routes all
// statements through the transaction carried in ctx.
func (st *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return repo.ExecuteInTransaction(ctx, st.pool, func(ctx context.Context) error {
		return fn(ctx, pgTx{pool: st.pool})
	})
}

func (st *PostgresStore) GetByID(ctx context.Context, id string) (Session, error) {
	row := repo.Q(ctx, st.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (st *PostgresStore) CountForPair(ctx context.Context, userID, machineID string) (int, error) {
	var n int
	err := repo.Q(ctx, st.pool).QueryRow(ctx,
		`SELECT count(*) FROM sessions WHERE user_id = $1 AND machine_id = $2`,
		userID, machineID).Scan(&n)
	return n, err
}

// pgTx implements Tx over the transaction bound to the context.
type pgTx struct {
	pool *pgxpool.Pool
}

func (t pgTx) LockPair(ctx context.Context, userID, machineID string) error {
	_, err := repo.Q(ctx, t.pool).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`,
		userID, machineID)
	return err
}

func (t pgTx) Get(ctx context.Context, id string) (Session, error) {
	row := repo.Q(ctx, t.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
	return scanSession(row)
}

func (t pgTx) ActiveSessions(ctx context.Context, userID, machineID string) ([]Session, error) {
	rows, err := repo.Q(ctx, t.pool).Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND machine_id = $2 AND logout_time IS NULL
		 ORDER BY login_time DESC
		 FOR UPDATE`, userID, machineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t pgTx) LatestOnDay(ctx context.Context, userID, machineID string, dayStart, dayEnd time.Time) (Session, bool, error) {
	row := repo.Q(ctx, t.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND machine_id = $2
		   AND login_time >= $3 AND login_time < $4
		 ORDER BY login_time DESC
		 LIMIT 1
		 FOR UPDATE`, userID, machineID, dayStart, dayEnd)
	s, err := scanSession(row)
	if err == ErrNotFound {
		return Session{}, false, nil
	}
	return s, err == nil, err
}

func (t pgTx) LatestClosed(ctx context.Context, userID, machineID string) (Session, bool, error) {
	row := repo.Q(ctx, t.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND machine_id = $2 AND logout_time IS NOT NULL
		 ORDER BY logout_time DESC
		 LIMIT 1
		 FOR UPDATE`, userID, machineID)
	s, err := scanSession(row)
	if err == ErrNotFound {
		return Session{}, false, nil
	}
	return s, err == nil, err
}

func (t pgTx) Insert(ctx context.Context, s Session) error {
	_, err := repo.Q(ctx, t.pool).Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		s.ID, s.UserID, s.MachineID, s.IPAddress, s.SessionData,
		s.LoginTime, s.LogoutTime,
		s.ContinuedFrom, s.ContinuedBy,
		s.PreviousSessionEndTime, s.TimeSincePreviousSession,
		s.Audit.CreatedAt, s.Audit.CreatedBy, s.Audit.UpdatedAt, s.Audit.UpdatedBy)
	if repo.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (t pgTx) Close(ctx context.Context, id string, at time.Time, by *string) error {
	tag, err := repo.Q(ctx, t.pool).Exec(ctx,
		`UPDATE sessions SET logout_time = $2, updated_at = $2, updated_by = $3 WHERE id = $1`,
		id, at, by)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t pgTx) Reopen(ctx context.Context, id string, now time.Time, by *string) error {
	tag, err := repo.Q(ctx, t.pool).Exec(ctx,
		`UPDATE sessions SET logout_time = NULL, updated_at = $2, updated_by = $3 WHERE id = $1`,
		id, now, by)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t pgTx) SetContinuedBy(ctx context.Context, id, successorID string, now time.Time, by *string) error {
	_, err := repo.Q(ctx, t.pool).Exec(ctx,
		`UPDATE sessions SET continued_by_session = $2, updated_at = $3, updated_by = $4 WHERE id = $1`,
		id, successorID, now, by)
	return err
}
