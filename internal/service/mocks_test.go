package service

import (
	"context"
	"sync"
	"time"

	"treechat/internal/domain"
	"treechat/internal/repository"
)

// Fakes en memoria compartidos por los tests del paquete.

type memThreadRepo struct {
	mu        sync.Mutex
	items     map[string]domain.Thread
	createErr error
	deleted   []string
}

func newMemThreadRepo(threads ...domain.Thread) *memThreadRepo {
	r := &memThreadRepo{items: make(map[string]domain.Thread)}
	for _, t := range threads {
		r.items[t.ID] = t
	}
	return r
}

func (r *memThreadRepo) Create(_ context.Context, thread domain.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.items[thread.ID] = thread
	return nil
}

func (r *memThreadRepo) GetByID(_ context.Context, id string) (domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return domain.Thread{}, repository.ErrNotFound
	}
	return t, nil
}

func (r *memThreadRepo) List(_ context.Context) ([]domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Thread, 0, len(r.items))
	for _, t := range r.items {
		out = append(out, t)
	}
	return out, nil
}

func (r *memThreadRepo) ListByParentID(_ context.Context, parentID string) ([]domain.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Thread
	for _, t := range r.items {
		if t.ParentContextID == parentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memThreadRepo) Rename(_ context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Title = title
	r.items[id] = t
	return nil
}

func (r *memThreadRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.items[id]; ok {
		t.UpdatedAt = at
		r.items[id] = t
	}
	return nil
}

func (r *memThreadRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	byThread map[string][]domain.Message
	batchErr error
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{byThread: make(map[string][]domain.Message)}
}

func (r *memMessageRepo) Insert(_ context.Context, message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byThread[message.ThreadID] = append(r.byThread[message.ThreadID], message)
	return nil
}

func (r *memMessageRepo) InsertBatch(_ context.Context, messages []domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.batchErr != nil {
		return r.batchErr
	}
	for _, m := range messages {
		r.byThread[m.ThreadID] = append(r.byThread[m.ThreadID], m)
	}
	return nil
}

func (r *memMessageRepo) GetByID(_ context.Context, id string) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msgs := range r.byThread {
		for _, m := range msgs {
			if m.ID == id {
				return m, nil
			}
		}
	}
	return domain.Message{}, repository.ErrNotFound
}

func (r *memMessageRepo) ListByThreadID(_ context.Context, threadID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.byThread[threadID]...), nil
}

func (r *memMessageRepo) DeleteByThreadID(_ context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byThread, threadID)
	return nil
}

type memTaskRepo struct {
	mu    sync.Mutex
	items map[string]domain.Task
}

func newMemTaskRepo(tasks ...domain.Task) *memTaskRepo {
	r := &memTaskRepo{items: make(map[string]domain.Task)}
	for _, t := range tasks {
		r.items[t.ID] = t
	}
	return r
}

func (r *memTaskRepo) Create(_ context.Context, task domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[task.ID] = task
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id string) (domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return domain.Task{}, repository.ErrNotFound
	}
	return t, nil
}

func (r *memTaskRepo) ListOpen(_ context.Context) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Task
	for _, t := range r.items {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTaskRepo) Update(_ context.Context, task domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[task.ID]; !ok {
		return repository.ErrNotFound
	}
	r.items[task.ID] = task
	return nil
}

type recordingBackend struct {
	mu    sync.Mutex
	moves []string
	err   error
}

func (b *recordingBackend) MoveThread(_ context.Context, folderID, threadID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.moves = append(b.moves, folderID+"<-"+threadID)
	return nil
}
