package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

const jobColumns = `
	id,
	location_id,
	requester,
	customer,
	purpose,
	status,
	sections,
	completeness_pct,
	gaps,
	created_at,
	updated_at,
	completed_at`

// JobRepository persists EvaluationJobs in PostgreSQL.
type JobRepository struct {
	db DB
}

// NewJobRepository creates a new PostgreSQL job repository
func NewJobRepository(db DB) *JobRepository {
	return &JobRepository{db: db}
}

// GetByID loads one job.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.EvaluationJob, error) {
	sql := `SELECT` + jobColumns + `
		FROM evaluation_jobs
		WHERE id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to get job %s: %w", id, err)
	}
	return job, nil
}

// ListByLocation returns every job that references the location, oldest first.
func (r *JobRepository) ListByLocation(ctx context.Context, locationID string) ([]models.EvaluationJob, error) {
	sql := `SELECT` + jobColumns + `
		FROM evaluation_jobs
		WHERE location_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, sql, locationID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute job query: %w", err)
	}
	defer rows.Close()

	var jobs []models.EvaluationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}
	return jobs, nil
}

// Insert stores a new job.
func (r *JobRepository) Insert(ctx context.Context, job *models.EvaluationJob) error {
	sections, gaps, err := marshalJobState(job)
	if err != nil {
		return err
	}

	sql := `
		INSERT INTO evaluation_jobs (` + jobColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.Exec(ctx, sql,
		job.ID,
		job.LocationID,
		job.Requester,
		job.Customer,
		string(job.Purpose),
		string(job.Status),
		sections,
		job.CompletenessPct,
		gaps,
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert job %s: %w", job.ID, err)
	}
	return nil
}

// Update writes the mutable job state.
func (r *JobRepository) Update(ctx context.Context, job *models.EvaluationJob) error {
	sections, gaps, err := marshalJobState(job)
	if err != nil {
		return err
	}

	sql := `
		UPDATE evaluation_jobs SET
			status = $2,
			sections = $3,
			completeness_pct = $4,
			gaps = $5,
			updated_at = $6,
			completed_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, sql,
		job.ID,
		string(job.Status),
		sections,
		job.CompletenessPct,
		gaps,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalJobState(job *models.EvaluationJob) ([]byte, []byte, error) {
	sections := job.Sections
	if sections == nil {
		sections = map[models.Category]models.DataSectionStatus{}
	}
	gaps := job.Gaps
	if gaps == nil {
		gaps = []models.DataGap{}
	}

	rawSections, err := json.Marshal(sections)
	if err != nil {
		return nil, nil, fmt.Errorf("repository: job %s sections: %w", job.ID, err)
	}
	rawGaps, err := json.Marshal(gaps)
	if err != nil {
		return nil, nil, fmt.Errorf("repository: job %s gaps: %w", job.ID, err)
	}
	return rawSections, rawGaps, nil
}

func scanJob(row pgx.Row) (*models.EvaluationJob, error) {
	var (
		job      models.EvaluationJob
		purpose  string
		status   string
		sections []byte
		gaps     []byte
	)
	err := row.Scan(
		&job.ID,
		&job.LocationID,
		&job.Requester,
		&job.Customer,
		&purpose,
		&status,
		&sections,
		&job.CompletenessPct,
		&gaps,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Purpose = models.Purpose(purpose)
	job.Status = models.Status(status)
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &job.Sections); err != nil {
			return nil, fmt.Errorf("decode job sections: %w", err)
		}
	}
	if len(gaps) > 0 {
		if err := json.Unmarshal(gaps, &job.Gaps); err != nil {
			return nil, fmt.Errorf("decode job gaps: %w", err)
		}
	}
	return &job, nil
}
