package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"treechat/internal/domain"
)

type TaskRepository interface {
	Create(ctx context.Context, task domain.Task) error
	GetByID(ctx context.Context, id string) (domain.Task, error)
	ListOpen(ctx context.Context) ([]domain.Task, error)
	Update(ctx context.Context, task domain.Task) error
}

type PgTaskRepository struct {
	pool *pgxpool.Pool
}

func NewPgTaskRepository(pool *pgxpool.Pool) *PgTaskRepository {
	return &PgTaskRepository{pool: pool}
}

func (r *PgTaskRepository) Create(ctx context.Context, task domain.Task) error {
	const query = `
		INSERT INTO tasks (id, title, description, due_date, due_fuzzy, urgency, completed, completed_at, source_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Title,
		nullable(task.Description),
		task.DueDate,
		nullable(task.DueFuzzy),
		nullable(task.Urgency),
		task.Completed,
		task.CompletedAt,
		nullable(task.SourceMessageID),
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

const selectTaskColumns = `
	SELECT id, title, description, due_date, due_fuzzy, urgency, completed, completed_at, source_message_id, created_at, updated_at
	FROM tasks
`

func (r *PgTaskRepository) GetByID(ctx context.Context, id string) (domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, selectTaskColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	return task, err
}

func (r *PgTaskRepository) ListOpen(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, selectTaskColumns+` WHERE completed = false ORDER BY due_date ASC NULLS LAST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *PgTaskRepository) Update(ctx context.Context, task domain.Task) error {
	const query = `
		UPDATE tasks
		SET title = $2, description = $3, due_date = $4, due_fuzzy = $5, urgency = $6,
		    completed = $7, completed_at = $8, updated_at = $9
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Title,
		nullable(task.Description),
		task.DueDate,
		nullable(task.DueFuzzy),
		nullable(task.Urgency),
		task.Completed,
		task.CompletedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		task        domain.Task
		description *string
		dueFuzzy    *string
		urgency     *string
		sourceMsg   *string
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&task.DueDate,
		&dueFuzzy,
		&urgency,
		&task.Completed,
		&task.CompletedAt,
		&sourceMsg,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return domain.Task{}, err
	}
	if description != nil {
		task.Description = *description
	}
	if dueFuzzy != nil {
		task.DueFuzzy = *dueFuzzy
	}
	if urgency != nil {
		task.Urgency = *urgency
	}
	if sourceMsg != nil {
		task.SourceMessageID = *sourceMsg
	}
	return task, nil
}
