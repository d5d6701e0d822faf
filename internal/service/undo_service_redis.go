package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"treechat/internal/domain"
)

// redisUndoClient es el subconjunto de *redis.Client que usa el ledger.
type redisUndoClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisUndoLedger persiste los tokens en redis con TTL igual a la ventana
// de undo: la caducidad la aplica el propio redis. El consumo usa GETDEL,
// que es atómico, así bajo resolves concurrentes uno solo obtiene el
// registro y el resto ve el tombstone de "ya resuelto".
type RedisUndoLedger struct {
	client redisUndoClient
	prefix string
	window time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	reversers map[string]ReverseFunc
}

type redisUndoRecord struct {
	Message  string           `json:"message"`
	IssuedAt time.Time        `json:"issued_at"`
	Ref      domain.ActionRef `json:"ref"`
}

func NewRedisUndoLedger(client *redis.Client, window time.Duration, logger *zap.Logger) *RedisUndoLedger {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = DefaultUndoWindow
	}
	return &RedisUndoLedger{
		client:    client,
		prefix:    "undo:token:",
		window:    window,
		logger:    logger,
		reversers: make(map[string]ReverseFunc),
	}
}

func (l *RedisUndoLedger) RegisterReverser(actionType string, fn ReverseFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reversers[actionType] = fn
}

func (l *RedisUndoLedger) Issue(ctx context.Context, message string, ref domain.ActionRef) (domain.UndoToken, error) {
	if l == nil || l.client == nil {
		return domain.UndoToken{}, ErrLedgerNotConfigured
	}

	now := time.Now().UTC()
	token := domain.UndoToken{
		Token:     uuid.NewString(),
		Message:   message,
		IssuedAt:  now,
		ExpiresIn: int(l.window / time.Second),
		Status:    domain.UndoIssued,
	}

	raw, err := json.Marshal(redisUndoRecord{Message: message, IssuedAt: now, Ref: ref})
	if err != nil {
		return domain.UndoToken{}, fmt.Errorf("marshal undo record: %w", err)
	}

	if err := l.client.Set(ctx, l.prefix+token.Token, raw, l.window).Err(); err != nil {
		return domain.UndoToken{}, fmt.Errorf("store undo token: %w", err)
	}

	return token, nil
}

func (l *RedisUndoLedger) Resolve(ctx context.Context, token string) (domain.UndoToken, error) {
	if l == nil || l.client == nil {
		return domain.UndoToken{}, ErrLedgerNotConfigured
	}

	raw, err := l.client.GetDel(ctx, l.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		status, terr := l.client.Get(ctx, l.tombstoneKey(token)).Result()
		if terr == nil {
			return domain.UndoToken{Token: token, Status: domain.UndoStatus(status)}, ErrTokenAlreadyResolved
		}
		// Sin registro ni tombstone: expiró y redis lo descartó, o nunca
		// existió. Desde afuera es lo mismo: ya no se puede actuar.
		return domain.UndoToken{}, ErrTokenNotFound
	}
	if err != nil {
		return domain.UndoToken{}, fmt.Errorf("load undo token: %w", err)
	}

	var rec redisUndoRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.UndoToken{}, fmt.Errorf("unmarshal undo record: %w", err)
	}

	out := domain.UndoToken{
		Token:     token,
		Message:   rec.Message,
		IssuedAt:  rec.IssuedAt,
		ExpiresIn: int(l.window / time.Second),
	}

	l.mu.Lock()
	fn, ok := l.reversers[rec.Ref.Type]
	l.mu.Unlock()
	if !ok {
		out.Status = domain.UndoFailure
		l.writeTombstone(ctx, token, out.Status)
		return out, fmt.Errorf("%w: %s", ErrNoReverseHandler, rec.Ref.Type)
	}

	if rerr := fn(ctx, rec.Ref.Payload); rerr != nil {
		out.Status = domain.UndoFailure
		l.writeTombstone(ctx, token, out.Status)
		l.logger.Warn("undo reverse failed", zap.String("token", token), zap.Error(rerr))
		return out, fmt.Errorf("%w: %v", ErrReverseFailed, rerr)
	}

	out.Status = domain.UndoSuccess
	l.writeTombstone(ctx, token, out.Status)
	l.logger.Info("undo applied", zap.String("token", token))
	return out, nil
}

func (l *RedisUndoLedger) Peek(ctx context.Context, token string) (domain.UndoToken, error) {
	if l == nil || l.client == nil {
		return domain.UndoToken{}, ErrLedgerNotConfigured
	}

	raw, err := l.client.Get(ctx, l.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		status, terr := l.client.Get(ctx, l.tombstoneKey(token)).Result()
		if terr == nil {
			return domain.UndoToken{Token: token, Status: domain.UndoStatus(status)}, nil
		}
		return domain.UndoToken{}, ErrTokenNotFound
	}
	if err != nil {
		return domain.UndoToken{}, err
	}

	var rec redisUndoRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.UndoToken{}, err
	}

	return domain.UndoToken{
		Token:     token,
		Message:   rec.Message,
		IssuedAt:  rec.IssuedAt,
		ExpiresIn: int(l.window / time.Second),
		Status:    domain.UndoIssued,
	}, nil
}

func (l *RedisUndoLedger) tombstoneKey(token string) string {
	return l.prefix + "done:" + token
}

func (l *RedisUndoLedger) writeTombstone(ctx context.Context, token string, status domain.UndoStatus) {
	if err := l.client.Set(ctx, l.tombstoneKey(token), string(status), 10*l.window).Err(); err != nil {
		l.logger.Warn("write undo tombstone failed", zap.String("token", token), zap.Error(err))
	}
}
