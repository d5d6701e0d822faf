package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"treechat/internal/domain"
)

type FolderRepository interface {
	Create(ctx context.Context, folder domain.Folder) error
	GetByID(ctx context.Context, id string) (domain.Folder, error)
	List(ctx context.Context) ([]domain.Folder, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	// MoveThread quita el hilo de cualquier folder donde esté y lo inserta
	// en folderID dentro de la misma transacción. folderID vacío deja el
	// hilo sin archivar.
	MoveThread(ctx context.Context, folderID, threadID string) error
}

type PgFolderRepository struct {
	pool *pgxpool.Pool
}

func NewPgFolderRepository(pool *pgxpool.Pool) *PgFolderRepository {
	return &PgFolderRepository{pool: pool}
}

func (r *PgFolderRepository) Create(ctx context.Context, folder domain.Folder) error {
	const query = `
		INSERT INTO folders (id, name, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		folder.ID,
		folder.Name,
		folder.Order,
		folder.CreatedAt,
		folder.UpdatedAt,
	)
	return err
}

func (r *PgFolderRepository) GetByID(ctx context.Context, id string) (domain.Folder, error) {
	const query = `SELECT id, name, position, created_at, updated_at FROM folders WHERE id = $1`

	var folder domain.Folder
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&folder.ID,
		&folder.Name,
		&folder.Order,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Folder{}, ErrNotFound
	}
	if err != nil {
		return domain.Folder{}, err
	}

	folder.ThreadIDs, err = r.folderThreads(ctx, id)
	return folder, err
}

func (r *PgFolderRepository) List(ctx context.Context) ([]domain.Folder, error) {
	const query = `SELECT id, name, position, created_at, updated_at FROM folders ORDER BY position ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []domain.Folder
	for rows.Next() {
		var folder domain.Folder
		err = rows.Scan(&folder.ID, &folder.Name, &folder.Order, &folder.CreatedAt, &folder.UpdatedAt)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range folders {
		folders[i].ThreadIDs, err = r.folderThreads(ctx, folders[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return folders, nil
}

func (r *PgFolderRepository) Rename(ctx context.Context, id, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE folders SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgFolderRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, `DELETE FROM folder_threads WHERE folder_id = $1`, id); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM folders WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgFolderRepository) MoveThread(ctx context.Context, folderID, threadID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Exclusividad: el hilo deja su folder anterior en la misma transacción
	// en la que entra al nuevo.
	if _, err = tx.Exec(ctx, `DELETE FROM folder_threads WHERE thread_id = $1`, threadID); err != nil {
		return err
	}
	if folderID != "" {
		const insert = `
			INSERT INTO folder_threads (folder_id, thread_id, position)
			VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM folder_threads WHERE folder_id = $1))
		`
		if _, err = tx.Exec(ctx, insert, folderID, threadID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PgFolderRepository) folderThreads(ctx context.Context, folderID string) ([]string, error) {
	const query = `SELECT thread_id FROM folder_threads WHERE folder_id = $1 ORDER BY position ASC`

	rows, err := r.pool.Query(ctx, query, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
