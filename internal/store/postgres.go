package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// PostgresStore mirrors job records into a jobs table, for deployments that
// externalize the store instead of using per-job files.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// jobRow flattens the Job record onto the jobs table columns.
type jobRow struct {
	JobID       string       `db:"job_id"`
	Prompt      string       `db:"prompt"`
	Wallet      string       `db:"wallet"`
	CallbackURL string       `db:"callback_url"`
	ClientIP    string       `db:"client_ip"`
	Status      string       `db:"status"`
	Tier        string       `db:"tier"`
	CostUSD     float64      `db:"cost_usd"`
	Retries     int          `db:"retries"`
	Result      string       `db:"result"`
	Error       string       `db:"error"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	StartedAt   sql.NullTime `db:"started_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

// NewPostgresStore connects to PostgreSQL and verifies the connection.
func NewPostgresStore(cfg *PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	logger.Info("Connecting to PostgreSQL",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("database", cfg.Database),
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Save upserts the full job record keyed by job id.
func (s *PostgresStore) Save(ctx context.Context, job *domain.Job) error {
	row := toRow(job)

	query := `
		INSERT INTO jobs (
			job_id, prompt, wallet, callback_url, client_ip,
			status, tier, cost_usd, retries, result, error,
			created_at, updated_at, started_at, completed_at
		) VALUES (
			:job_id, :prompt, :wallet, :callback_url, :client_ip,
			:status, :tier, :cost_usd, :retries, :result, :error,
			:created_at, :updated_at, :started_at, :completed_at
		)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			retries = EXCLUDED.retries,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}

	return nil
}

// Get reads one job record by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	var row jobRow
	query := `SELECT * FROM jobs WHERE job_id = $1`

	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	return fromRow(&row), nil
}

// LoadAll returns every stored job in creation order, oldest first, so
// recovery requeues preserve admission order.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]*domain.Job, error) {
	var rows []jobRow
	query := `SELECT * FROM jobs ORDER BY created_at ASC, job_id ASC`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}

	jobs := make([]*domain.Job, len(rows))
	for i := range rows {
		jobs[i] = fromRow(&rows[i])
	}

	return jobs, nil
}

// Delete removes a job record.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func toRow(job *domain.Job) *jobRow {
	row := &jobRow{
		JobID:       job.ID,
		Prompt:      job.Request.Prompt,
		Wallet:      job.Request.Wallet,
		CallbackURL: job.Request.CallbackURL,
		ClientIP:    job.Request.ClientIP,
		Status:      string(job.Status),
		Tier:        job.Tier,
		CostUSD:     job.CostUSD,
		Retries:     job.Retries,
		Result:      job.Result,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if job.StartedAt != nil {
		row.StartedAt = sql.NullTime{Time: *job.StartedAt, Valid: true}
	}
	if job.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: *job.CompletedAt, Valid: true}
	}
	return row
}

func fromRow(row *jobRow) *domain.Job {
	job := &domain.Job{
		ID: row.JobID,
		Request: domain.Request{
			Prompt:      row.Prompt,
			Wallet:      row.Wallet,
			CallbackURL: row.CallbackURL,
			ClientIP:    row.ClientIP,
		},
		Status:    domain.JobStatus(row.Status),
		Tier:      row.Tier,
		CostUSD:   row.CostUSD,
		Retries:   row.Retries,
		Result:    row.Result,
		Error:     row.Error,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.StartedAt.Valid {
		t := row.StartedAt.Time
		job.StartedAt = &t
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time
		job.CompletedAt = &t
	}
	return job
}
