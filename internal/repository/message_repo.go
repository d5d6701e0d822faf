package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"treechat/internal/domain"
)

type MessageRepository interface {
	Insert(ctx context.Context, message domain.Message) error
	InsertBatch(ctx context.Context, messages []domain.Message) error
	GetByID(ctx context.Context, id string) (domain.Message, error)
	ListByThreadID(ctx context.Context, threadID string) ([]domain.Message, error)
	DeleteByThreadID(ctx context.Context, threadID string) error
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

const insertMessageQuery = `
	INSERT INTO messages (id, thread_id, parent_id, role, content, is_checkpoint, summary, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func (r *PgMessageRepository) Insert(ctx context.Context, message domain.Message) error {
	_, err := r.pool.Exec(ctx, insertMessageQuery,
		message.ID,
		message.ThreadID,
		nullable(message.ParentID),
		message.Role,
		message.Content,
		message.IsCheckpoint,
		nullable(message.Summary),
		message.CreatedAt,
	)
	return err
}

// InsertBatch inserta la semilla de un fork en una sola transacción: o
// entran todos los mensajes o no entra ninguno.
func (r *PgMessageRepository) InsertBatch(ctx context.Context, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, msg := range messages {
		_, err = tx.Exec(ctx, insertMessageQuery,
			msg.ID,
			msg.ThreadID,
			nullable(msg.ParentID),
			msg.Role,
			msg.Content,
			msg.IsCheckpoint,
			nullable(msg.Summary),
			msg.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PgMessageRepository) GetByID(ctx context.Context, id string) (domain.Message, error) {
	const query = `
		SELECT id, thread_id, parent_id, role, content, is_checkpoint, summary, created_at
		FROM messages
		WHERE id = $1
	`
	msg, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	return msg, err
}

func (r *PgMessageRepository) ListByThreadID(ctx context.Context, threadID string) ([]domain.Message, error) {
	const query = `
		SELECT id, thread_id, parent_id, role, content, is_checkpoint, summary, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *PgMessageRepository) DeleteByThreadID(ctx context.Context, threadID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE thread_id = $1`, threadID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		msg     domain.Message
		parent  *string
		summary *string
	)
	err := row.Scan(
		&msg.ID,
		&msg.ThreadID,
		&parent,
		&msg.Role,
		&msg.Content,
		&msg.IsCheckpoint,
		&summary,
		&msg.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, err
	}
	if parent != nil {
		msg.ParentID = *parent
	}
	if summary != nil {
		msg.Summary = *summary
	}
	return msg, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
