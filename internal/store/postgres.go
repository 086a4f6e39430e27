package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haltline/intervention-controller/internal/domain"
)

// PostgresStore implements Store using a PostgreSQL backend. It is the
// production Persistence Gateway; component state writes are upserts keyed
// on (user_id, component_id), with last_touched resolving latest-wins reads
// the way StoreState/LastState expect.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, start_date, quit_date, preferred_weekday, preferred_daypart, activity_level
		FROM users WHERE id = $1
	`
	var u domain.User
	var weekday int
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.StartDate, &u.QuitDate, &weekday, &u.PreferredDaypart, &u.ActivityLevel,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &ErrPersistence{Op: "GetUser", Err: err}
	}
	u.PreferredWeekday = time.Weekday(weekday)
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT id, start_date, quit_date, preferred_weekday, preferred_daypart, activity_level
		FROM users ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, &ErrPersistence{Op: "ListUsers", Err: err}
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var u domain.User
		var weekday int
		if err := rows.Scan(&u.ID, &u.StartDate, &u.QuitDate, &weekday, &u.PreferredDaypart, &u.ActivityLevel); err != nil {
			return nil, &ErrPersistence{Op: "ListUsers", Err: err}
		}
		u.PreferredWeekday = time.Weekday(weekday)
		users = append(users, &u)
	}
	return users, nil
}

func (s *PostgresStore) GetComponentByName(ctx context.Context, name domain.ComponentName) (*domain.Component, error) {
	query := `SELECT id, name, trigger, type FROM components WHERE name = $1`
	var c domain.Component
	err := s.pool.QueryRow(ctx, query, name).Scan(&c.ID, &c.Name, &c.Trigger, &c.Type)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &ErrPersistence{Op: "GetComponentByName", Err: err}
	}
	return &c, nil
}

func (s *PostgresStore) GetComponentByID(ctx context.Context, id int64) (*domain.Component, error) {
	query := `SELECT id, name, trigger, type FROM components WHERE id = $1`
	var c domain.Component
	err := s.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Trigger, &c.Type)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &ErrPersistence{Op: "GetComponentByID", Err: err}
	}
	return &c, nil
}

func (s *PostgresStore) LastState(ctx context.Context, userID string, componentID int64) (*domain.ComponentState, error) {
	query := `
		SELECT id, user_id, component_id, phase, completed, last_touched, last_part, next_planned_date, task_handle
		FROM component_states WHERE user_id = $1 AND component_id = $2
	`
	var st domain.ComponentState
	err := s.pool.QueryRow(ctx, query, userID, componentID).Scan(
		&st.ID, &st.UserID, &st.ComponentID, &st.Phase, &st.Completed,
		&st.LastTouched, &st.LastPart, &st.NextPlannedDate, &st.TaskHandle,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &ErrPersistence{Op: "LastState", Err: err}
	}
	return &st, nil
}

func (s *PostgresStore) GetCompletion(ctx context.Context, userID string, componentID int64) (bool, error) {
	st, err := s.LastState(ctx, userID, componentID)
	if err != nil {
		return false, err
	}
	if st == nil {
		return false, nil
	}
	return st.Completed, nil
}

// StoreState upserts by (user_id, component_id): one row per component per
// user, last_touched moving forward on every write. This is the resolved
// Open Question on append-vs-upsert (see DESIGN.md).
func (s *PostgresStore) StoreState(ctx context.Context, state *domain.ComponentState) error {
	if state.LastTouched.IsZero() {
		state.LastTouched = time.Now()
	}
	query := `
		INSERT INTO component_states
			(user_id, component_id, phase, completed, last_touched, last_part, next_planned_date, task_handle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, component_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			completed = EXCLUDED.completed,
			last_touched = EXCLUDED.last_touched,
			last_part = EXCLUDED.last_part,
			next_planned_date = EXCLUDED.next_planned_date,
			task_handle = EXCLUDED.task_handle
		RETURNING id
	`
	return s.pool.QueryRow(ctx, query,
		state.UserID, state.ComponentID, state.Phase, state.Completed,
		state.LastTouched, state.LastPart, state.NextPlannedDate, state.TaskHandle,
	).Scan(&state.ID)
}

func (s *PostgresStore) GetNextPlannedDate(ctx context.Context, userID string, componentID int64, now time.Time, preferredHour func(time.Time) time.Time) (time.Time, error) {
	st, err := s.LastState(ctx, userID, componentID)
	if err != nil {
		return time.Time{}, err
	}
	if st != nil && !st.NextPlannedDate.IsZero() {
		return st.NextPlannedDate, nil
	}
	return preferredHour(now.AddDate(0, 0, 1)), nil
}

func (s *PostgresStore) CurrentPhaseState(ctx context.Context, userID string) (domain.PhaseStateTag, error) {
	query := `SELECT phase_state FROM controller_states WHERE user_id = $1`
	var tag domain.PhaseStateTag
	err := s.pool.QueryRow(ctx, query, userID).Scan(&tag)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &ErrNotFound{Kind: "controller_state", ID: userID}
	}
	if err != nil {
		return "", &ErrPersistence{Op: "CurrentPhaseState", Err: err}
	}
	return tag, nil
}

func (s *PostgresStore) SetPhaseState(ctx context.Context, userID string, tag domain.PhaseStateTag) error {
	query := `
		INSERT INTO controller_states (user_id, phase_state, execution_week)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET phase_state = EXCLUDED.phase_state
	`
	_, err := s.pool.Exec(ctx, query, userID, tag)
	if err != nil {
		return &ErrPersistence{Op: "SetPhaseState", Err: err}
	}
	return nil
}

func (s *PostgresStore) ExecutionWeek(ctx context.Context, userID string) (int, error) {
	query := `SELECT execution_week FROM controller_states WHERE user_id = $1`
	var week int
	err := s.pool.QueryRow(ctx, query, userID).Scan(&week)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &ErrNotFound{Kind: "controller_state", ID: userID}
	}
	if err != nil {
		return 0, &ErrPersistence{Op: "ExecutionWeek", Err: err}
	}
	return week, nil
}

func (s *PostgresStore) SetExecutionWeek(ctx context.Context, userID string, week int) error {
	query := `
		INSERT INTO controller_states (user_id, phase_state, execution_week)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET execution_week = EXCLUDED.execution_week
	`
	_, err := s.pool.Exec(ctx, query, userID, domain.StateOnboarding, week)
	if err != nil {
		return &ErrPersistence{Op: "SetExecutionWeek", Err: err}
	}
	return nil
}
