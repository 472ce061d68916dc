package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"kaspimarket_api/internal/kaspi/business/models"
)

// JobRepository хранит задания выгрузки для аудита и восстановления.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Insert(ctx context.Context, job *models.UploadJob) error {
	ids := make([]int64, len(job.ProductIDs))
	copy(ids, job.ProductIDs)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kaspi.upload_jobs (id, product_ids, status, submitted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		job.ID, pq.Array(ids), string(job.Status), job.SubmittedAt)
	return err
}

// RecordPoll фиксирует результат очередного опроса задания.
func (r *JobRepository) RecordPoll(ctx context.Context, id string, status models.JobStatus, itemErrors []models.ItemError, polledAt time.Time) error {
	raw, err := json.Marshal(itemErrors)
	if err != nil {
		return err
	}
	if itemErrors == nil {
		raw = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE kaspi.upload_jobs
		SET status = $1, item_errors = $2::jsonb, last_polled_at = $3
		WHERE id = $4`,
		string(status), string(raw), polledAt, id)
	return err
}

func (r *JobRepository) Get(ctx context.Context, id string) (*models.UploadJob, error) {
	var job models.UploadJob
	var status string
	var ids pq.Int64Array
	var errorsRaw []byte
	var polled sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, product_ids, status, item_errors, submitted_at, last_polled_at
		FROM kaspi.upload_jobs
		WHERE id = $1`,
		id).Scan(&job.ID, &ids, &status, &errorsRaw, &job.SubmittedAt, &polled)
	if err != nil {
		return nil, err
	}

	job.ProductIDs = ids
	job.Status = models.JobStatus(status)
	if err := json.Unmarshal(errorsRaw, &job.ItemErrors); err != nil {
		return nil, err
	}
	if polled.Valid {
		job.LastPolledAt = polled.Time
	}
	return &job, nil
}
