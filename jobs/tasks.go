package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsPurge is the task type for purging expired session rows.
	TaskSessionsPurge = "sessions:purge"
)

// SessionsPurgePayload bounds one purge run.
type SessionsPurgePayload struct {
	BatchSize int `json:"batch_size"`
}

// NewSessionsPurgeTask constructs an Asynq task.
func NewSessionsPurgeTask(batchSize int) (*asynq.Task, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	data, err := json.Marshal(SessionsPurgePayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsPurge, data), nil
}

// SessionsPurgeJob deletes login-session audit rows whose token has expired.
// The deny-list entries in Redis expire on their own; only postgres needs a
// sweeper.
type SessionsPurgeJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSessionsPurgeJob constructs the job.
func NewSessionsPurgeJob(pool *pgxpool.Pool, logger *slog.Logger) *SessionsPurgeJob {
	return &SessionsPurgeJob{pool: pool, logger: logger}
}

// Handle processes TaskSessionsPurge tasks.
func (j *SessionsPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionsPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 1000
	}

	tag, err := j.pool.Exec(ctx, `
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions WHERE expires_at < now() LIMIT $1
		)`, payload.BatchSize)
	if err != nil {
		return err
	}
	if j.logger != nil && tag.RowsAffected() > 0 {
		j.logger.Info("purged expired sessions", slog.Int64("rows", tag.RowsAffected()))
	}
	return nil
}
