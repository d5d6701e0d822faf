package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"treechat/internal/domain"
)

var (
	ErrLedgerNotConfigured  = errors.New("undo ledger not configured")
	ErrTokenNotFound        = errors.New("undo token not found")
	ErrTokenAlreadyResolved = errors.New("undo token already resolved")
	ErrTokenExpired         = errors.New("undo token expired")
	ErrNoReverseHandler     = errors.New("no reverse handler registered")
	ErrReverseFailed        = errors.New("reverse action failed")
)

// DefaultUndoWindow es la ventana por defecto para deshacer una acción.
const DefaultUndoWindow = 30 * time.Second

// ReverseFunc deshace una acción ya aplicada a partir de su payload.
type ReverseFunc func(ctx context.Context, payload json.RawMessage) error

// UndoLedger emite tokens de un solo uso para acciones reversibles y
// resuelve los pedidos de undo. Una vez que un token sale de "issued"
// nunca vuelve a actuar: bajo resolves concurrentes gana exactamente uno.
type UndoLedger interface {
	Issue(ctx context.Context, message string, ref domain.ActionRef) (domain.UndoToken, error)
	Resolve(ctx context.Context, token string) (domain.UndoToken, error)
	Peek(ctx context.Context, token string) (domain.UndoToken, error)
	RegisterReverser(actionType string, fn ReverseFunc)
}

type undoRecord struct {
	token     domain.UndoToken
	ref       domain.ActionRef
	expiresAt time.Time
	consuming bool
}

// MemoryUndoLedger guarda los tokens en memoria del proceso. La caducidad
// se chequea de forma perezosa contra el reloj inyectado; no hace falta
// ningún worker de fondo.
type MemoryUndoLedger struct {
	mu        sync.Mutex
	items     map[string]*undoRecord
	reversers map[string]ReverseFunc
	window    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewMemoryUndoLedger(window time.Duration, logger *zap.Logger) *MemoryUndoLedger {
	if window <= 0 {
		window = DefaultUndoWindow
	}
	return &MemoryUndoLedger{
		items:     make(map[string]*undoRecord),
		reversers: make(map[string]ReverseFunc),
		window:    window,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryUndoLedger) RegisterReverser(actionType string, fn ReverseFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reversers[actionType] = fn
}

// Issue crea el token en el instante en que la acción ya fue aplicada del
// lado del servidor. El mensaje es la descripción humana ("Completed 'x'").
func (l *MemoryUndoLedger) Issue(ctx context.Context, message string, ref domain.ActionRef) (domain.UndoToken, error) {
	if l == nil {
		return domain.UndoToken{}, ErrLedgerNotConfigured
	}

	now := l.now()
	token := domain.UndoToken{
		Token:     uuid.NewString(),
		Message:   message,
		IssuedAt:  now,
		ExpiresIn: int(l.window / time.Second),
		Status:    domain.UndoIssued,
	}

	l.mu.Lock()
	l.items[token.Token] = &undoRecord{
		token:     token,
		ref:       ref,
		expiresAt: now.Add(l.window),
	}
	l.mu.Unlock()

	return token, nil
}

// Resolve consume el token y ejecuta la reversa. El guard estilo
// compare-and-swap vive en claim: la transición issued→consuming pasa una
// sola vez, así el handler corre fuera del lock sin perder idempotencia.
func (l *MemoryUndoLedger) Resolve(ctx context.Context, token string) (domain.UndoToken, error) {
	if l == nil {
		return domain.UndoToken{}, ErrLedgerNotConfigured
	}

	rec, fn, err := l.claim(token)
	if err != nil {
		return rec, err
	}

	rerr := fn(ctx, l.itemPayload(token))

	l.mu.Lock()
	item := l.items[token]
	item.consuming = false
	if rerr != nil {
		item.token.Status = domain.UndoFailure
	} else {
		item.token.Status = domain.UndoSuccess
	}
	out := item.token
	l.mu.Unlock()

	if rerr != nil {
		l.logger.Warn("undo reverse failed", zap.String("token", token), zap.Error(rerr))
		return out, fmt.Errorf("%w: %v", ErrReverseFailed, rerr)
	}

	l.logger.Info("undo applied", zap.String("token", token))
	return out, nil
}

func (l *MemoryUndoLedger) claim(token string) (domain.UndoToken, ReverseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.items[token]
	if !ok {
		return domain.UndoToken{}, nil, ErrTokenNotFound
	}
	if rec.consuming || rec.token.Resolved() {
		return rec.token, nil, ErrTokenAlreadyResolved
	}
	if l.now().After(rec.expiresAt) {
		rec.token.Status = domain.UndoExpired
		return rec.token, nil, ErrTokenExpired
	}

	fn, ok := l.reversers[rec.ref.Type]
	if !ok {
		return rec.token, nil, fmt.Errorf("%w: %s", ErrNoReverseHandler, rec.ref.Type)
	}

	rec.consuming = true
	return rec.token, fn, nil
}

func (l *MemoryUndoLedger) itemPayload(token string) json.RawMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.items[token]; ok {
		return rec.ref.Payload
	}
	return nil
}

// Peek devuelve el estado actual del token sin consumirlo, marcando
// expirado si la ventana ya pasó.
func (l *MemoryUndoLedger) Peek(ctx context.Context, token string) (domain.UndoToken, error) {
	if l == nil {
		return domain.UndoToken{}, ErrLedgerNotConfigured
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.items[token]
	if !ok {
		return domain.UndoToken{}, ErrTokenNotFound
	}
	if rec.token.Status == domain.UndoIssued && !rec.consuming && l.now().After(rec.expiresAt) {
		rec.token.Status = domain.UndoExpired
	}
	return rec.token, nil
}

// Sweep marca como expirados los tokens vencidos todavía en issued y
// descarta los terminales viejos. Pensado para llamarse de forma
// cooperativa, no necesita un timer propio.
func (l *MemoryUndoLedger) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, rec := range l.items {
		if rec.token.Status == domain.UndoIssued && !rec.consuming && now.After(rec.expiresAt) {
			rec.token.Status = domain.UndoExpired
		}
		if rec.token.Status.Terminal() && now.After(rec.expiresAt.Add(10*l.window)) {
			delete(l.items, key)
		}
	}
}
