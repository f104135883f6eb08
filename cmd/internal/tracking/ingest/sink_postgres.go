package ingest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pulse/cmd/internal/repo"
)

// PostgresSink persists observations into the per-stream tables. Every
// statement routes through repo.Q so batch items join the pipeline's
// transaction and savepoints.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink constructs a PostgresSink over pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) InsertActivityEvent(ctx context.Context, e ActivityEvent) error {
	_, err := repo.Q(ctx, s.pool).Exec(ctx,
		`INSERT INTO activity_events
		   (id, session_id, app_id, event_type, event_time, event_data,
		    created_at, created_by, updated_at, updated_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.SessionID, e.AppID, e.EventType, e.EventTime, e.EventData,
		e.Audit.CreatedAt, e.Audit.CreatedBy, e.Audit.UpdatedAt, e.Audit.UpdatedBy)
	return sinkErr(err)
}

func (s *PostgresSink) InsertAppUsage(ctx context.Context, u AppUsage) error {
	_, err := repo.Q(ctx, s.pool).Exec(ctx,
		`INSERT INTO app_usages
		   (id, session_id, app_id, window_title, start_time, end_time, is_active,
		    created_at, created_by, updated_at, updated_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		u.ID, u.SessionID, u.AppID, u.WindowTitle, u.StartTime, u.EndTime, u.IsActive,
		u.Audit.CreatedAt, u.Audit.CreatedBy, u.Audit.UpdatedAt, u.Audit.UpdatedBy)
	return sinkErr(err)
}

func (s *PostgresSink) InsertSystemMetric(ctx context.Context, m SystemMetric) error {
	_, err := repo.Q(ctx, s.pool).Exec(ctx,
		`INSERT INTO system_metrics
		   (id, session_id, cpu_usage, gpu_usage, memory_usage, measurement_time,
		    created_at, created_by, updated_at, updated_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.SessionID, m.CPUUsage, m.GPUUsage, m.MemoryUsage, m.MeasurementTime,
		m.Audit.CreatedAt, m.Audit.CreatedBy, m.Audit.UpdatedAt, m.Audit.UpdatedBy)
	return sinkErr(err)
}

func (s *PostgresSink) InsertSessionEvent(ctx context.Context, e SessionEvent) error {
	_, err := repo.Q(ctx, s.pool).Exec(ctx,
		`INSERT INTO session_events
		   (id, session_id, event_type, event_time, user_id, previous_user_id,
		    machine_id, terminal_session_id, is_remote, event_data,
		    created_at, created_by, updated_at, updated_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, e.SessionID, e.EventType, e.EventTime, e.UserID, e.PreviousUserID,
		e.MachineID, e.TerminalSessionID, e.IsRemote, e.EventData,
		e.Audit.CreatedAt, e.Audit.CreatedBy, e.Audit.UpdatedAt, e.Audit.UpdatedBy)
	return sinkErr(err)
}

func (s *PostgresSink) OpenAFK(ctx context.Context, p AFKPeriod) error {
	_, err := repo.Q(ctx, s.pool).Exec(ctx,
		`INSERT INTO afk_periods
		   (id, session_id, start_time, end_time,
		    created_at, created_by, updated_at, updated_by)
		 SELECT $1, $2, $3, NULL, $4, $5, $6, $7
		 WHERE NOT EXISTS (
		   SELECT 1 FROM afk_periods WHERE session_id = $2 AND end_time IS NULL
		 )`,
		p.ID, p.SessionID, p.StartTime,
		p.Audit.CreatedAt, p.Audit.CreatedBy, p.Audit.UpdatedAt, p.Audit.UpdatedBy)
	return sinkErr(err)
}

func (s *PostgresSink) CloseAFK(ctx context.Context, sessionID string, at time.Time, by *string) error {
	_, err := repo.Q(ctx, s.pool).Exec(ctx,
		`UPDATE afk_periods
		    SET end_time = $2, updated_at = $2, updated_by = $3
		  WHERE session_id = $1 AND end_time IS NULL AND start_time < $2`,
		sessionID, at, by)
	return sinkErr(err)
}

// sinkErr maps foreign-key rejections, which mean the item referenced a
// session or app that does not exist, to per-item validation failures.
func sinkErr(err error) error {
	if repo.IsForeignKeyViolation(err) {
		return ValidationError{Reason: "referenced row does not exist"}
	}
	return err
}
