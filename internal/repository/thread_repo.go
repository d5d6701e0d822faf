package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"treechat/internal/domain"
)

type ThreadRepository interface {
	Create(ctx context.Context, thread domain.Thread) error
	GetByID(ctx context.Context, id string) (domain.Thread, error)
	List(ctx context.Context) ([]domain.Thread, error)
	ListByParentID(ctx context.Context, parentID string) ([]domain.Thread, error)
	Rename(ctx context.Context, id, title string) error
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type PgThreadRepository struct {
	pool *pgxpool.Pool
}

func NewPgThreadRepository(pool *pgxpool.Pool) *PgThreadRepository {
	return &PgThreadRepository{pool: pool}
}

func (r *PgThreadRepository) Create(ctx context.Context, thread domain.Thread) error {
	const query = `
		INSERT INTO threads (id, title, parent_context_id, fork_type, forked_from_message_id, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		thread.ID,
		thread.Title,
		nullable(thread.ParentContextID),
		nullable(string(thread.ForkType)),
		nullable(thread.ForkedFromMessageID),
		nullable(thread.Summary),
		thread.CreatedAt,
		thread.UpdatedAt,
	)
	return err
}

const selectThreadColumns = `
	SELECT id, title, parent_context_id, fork_type, forked_from_message_id, summary, created_at, updated_at
	FROM threads
`

func (r *PgThreadRepository) GetByID(ctx context.Context, id string) (domain.Thread, error) {
	thread, err := scanThread(r.pool.QueryRow(ctx, selectThreadColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Thread{}, ErrNotFound
	}
	return thread, err
}

func (r *PgThreadRepository) List(ctx context.Context) ([]domain.Thread, error) {
	return r.queryThreads(ctx, selectThreadColumns+` ORDER BY updated_at DESC`)
}

func (r *PgThreadRepository) ListByParentID(ctx context.Context, parentID string) ([]domain.Thread, error) {
	return r.queryThreads(ctx, selectThreadColumns+` WHERE parent_context_id = $1 ORDER BY created_at ASC`, parentID)
}

func (r *PgThreadRepository) Rename(ctx context.Context, id, title string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE threads SET title = $2, updated_at = now() WHERE id = $1`, id, title)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgThreadRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE threads SET updated_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *PgThreadRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM threads WHERE id = $1`, id)
	return err
}

func (r *PgThreadRepository) queryThreads(ctx context.Context, query string, args ...any) ([]domain.Thread, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return threads, nil
}

func scanThread(row rowScanner) (domain.Thread, error) {
	var (
		thread   domain.Thread
		parent   *string
		forkType *string
		forkMsg  *string
		summary  *string
	)
	err := row.Scan(
		&thread.ID,
		&thread.Title,
		&parent,
		&forkType,
		&forkMsg,
		&summary,
		&thread.CreatedAt,
		&thread.UpdatedAt,
	)
	if err != nil {
		return domain.Thread{}, err
	}
	if parent != nil {
		thread.ParentContextID = *parent
	}
	if forkType != nil {
		thread.ForkType = domain.ForkType(*forkType)
	}
	if forkMsg != nil {
		thread.ForkedFromMessageID = *forkMsg
	}
	if summary != nil {
		thread.Summary = *summary
	}
	return thread, nil
}
