package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"treechat/internal/domain"
)

func issuedToken(t *testing.T, ledger *MemoryUndoLedger, actionType string, payload string) domain.UndoToken {
	t.Helper()
	token, err := ledger.Issue(context.Background(), "Completed 'Estudiar'", domain.ActionRef{
		Type:    actionType,
		Payload: json.RawMessage(payload),
	})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	return token
}

func TestMemoryUndoLedger_IssueAndPeek(t *testing.T) {
	ledger := NewMemoryUndoLedger(30*time.Second, zap.NewNop())
	ledger.RegisterReverser("task.complete", func(context.Context, json.RawMessage) error { return nil })

	token := issuedToken(t, ledger, "task.complete", `{"task_id":"k1"}`)
	if token.Token == "" {
		t.Fatalf("expected opaque token value")
	}
	if token.Status != domain.UndoIssued {
		t.Fatalf("expected issued status, got %q", token.Status)
	}
	if token.ExpiresIn != 30 {
		t.Fatalf("expected 30s window, got %d", token.ExpiresIn)
	}

	peeked, err := ledger.Peek(context.Background(), token.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peeked.Status != domain.UndoIssued {
		t.Fatalf("peek must not consume the token, got %q", peeked.Status)
	}
}

func TestMemoryUndoLedger_ResolveRunsReverser(t *testing.T) {
	ledger := NewMemoryUndoLedger(30*time.Second, zap.NewNop())

	var got string
	ledger.RegisterReverser("task.complete", func(_ context.Context, payload json.RawMessage) error {
		got = string(payload)
		return nil
	})

	token := issuedToken(t, ledger, "task.complete", `{"task_id":"k1"}`)
	out, err := ledger.Resolve(context.Background(), token.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != domain.UndoSuccess {
		t.Fatalf("expected consumed-success, got %q", out.Status)
	}
	if got != `{"task_id":"k1"}` {
		t.Fatalf("reverser received wrong payload: %s", got)
	}
}

func TestMemoryUndoLedger_SecondResolveIsIdempotent(t *testing.T) {
	ledger := NewMemoryUndoLedger(30*time.Second, zap.NewNop())

	var calls int
	ledger.RegisterReverser("task.complete", func(context.Context, json.RawMessage) error {
		calls++
		return nil
	})

	token := issuedToken(t, ledger, "task.complete", `{}`)
	if _, err := ledger.Resolve(context.Background(), token.Token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := ledger.Resolve(context.Background(), token.Token)
	if !errors.Is(err, ErrTokenAlreadyResolved) {
		t.Fatalf("expected ErrTokenAlreadyResolved, got %v", err)
	}
	if out.Status != domain.UndoSuccess {
		t.Fatalf("second resolve must report the final status, got %q", out.Status)
	}
	if calls != 1 {
		t.Fatalf("reverser ran %d times", calls)
	}
}

func TestMemoryUndoLedger_ConcurrentResolveHasOneWinner(t *testing.T) {
	ledger := NewMemoryUndoLedger(30*time.Second, zap.NewNop())

	var calls int
	var callsMu sync.Mutex
	ledger.RegisterReverser("task.complete", func(context.Context, json.RawMessage) error {
		callsMu.Lock()
		calls++
		callsMu.Unlock()
		return nil
	})

	token := issuedToken(t, ledger, "task.complete", `{}`)

	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Resolve(context.Background(), token.Token)
		}(i)
	}
	wg.Wait()

	var winners, losers int
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrTokenAlreadyResolved):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	if losers != attempts-1 {
		t.Fatalf("expected %d losers, got %d", attempts-1, losers)
	}
	if calls != 1 {
		t.Fatalf("reverser ran %d times", calls)
	}
}

func TestMemoryUndoLedger_Expiry(t *testing.T) {
	ledger := NewMemoryUndoLedger(30*time.Second, zap.NewNop())

	var calls int
	ledger.RegisterReverser("task.complete", func(context.Context, json.RawMessage) error {
		calls++
		return nil
	})

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return base }
	token := issuedToken(t, ledger, "task.complete", `{}`)

	// La ventana pasó: el token sigue existiendo pero ya no actúa.
	ledger.now = func() time.Time { return base.Add(31 * time.Second) }

	out, err := ledger.Resolve(context.Background(), token.Token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if out.Status != domain.UndoExpired {
		t.Fatalf("expected expired status, got %q", out.Status)
	}
	if calls != 0 {
		t.Fatalf("reverser must not run after expiry")
	}

	peeked, err := ledger.Peek(context.Background(), token.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peeked.Status != domain.UndoExpired {
		t.Fatalf("peek should report expired, got %q", peeked.Status)
	}
}

func TestMemoryUndoLedger_ReverseFailure(t *testing.T) {
	ledger := NewMemoryUndoLedger(30*time.Second, zap.NewNop())
	ledger.RegisterReverser("task.complete", func(context.Context, json.RawMessage) error {
		return errors.New("la base no responde")
	})

	token := issuedToken(t, ledger, "task.complete", `{}`)
	out, err := ledger.Resolve(context.Background(), token.Token)
	if !errors.Is(err, ErrReverseFailed) {
		t.Fatalf("expected ErrReverseFailed, got %v", err)
	}
	if out.Status != domain.UndoFailure {
		t.Fatalf("expected consumed-failure, got %q", out.Status)
	}

	// El fallo también consume el token: no hay reintentos.
	if _, err := ledger.Resolve(context.Background(), token.Token); !errors.Is(err, ErrTokenAlreadyResolved) {
		t.Fatalf("expected ErrTokenAlreadyResolved after failure, got %v", err)
	}
}

func TestMemoryUndoLedger_UnknownTokenAndHandler(t *testing.T) {
	ledger := NewMemoryUndoLedger(30*time.Second, zap.NewNop())

	t.Run("token desconocido", func(t *testing.T) {
		if _, err := ledger.Resolve(context.Background(), "nope"); !errors.Is(err, ErrTokenNotFound) {
			t.Fatalf("expected ErrTokenNotFound, got %v", err)
		}
	})

	t.Run("sin reversa registrada", func(t *testing.T) {
		token := issuedToken(t, ledger, "task.unknown", `{}`)
		if _, err := ledger.Resolve(context.Background(), token.Token); !errors.Is(err, ErrNoReverseHandler) {
			t.Fatalf("expected ErrNoReverseHandler, got %v", err)
		}
	})
}

func TestMemoryUndoLedger_Sweep(t *testing.T) {
	ledger := NewMemoryUndoLedger(30*time.Second, zap.NewNop())
	ledger.RegisterReverser("task.complete", func(context.Context, json.RawMessage) error { return nil })

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return base }

	stale := issuedToken(t, ledger, "task.complete", `{}`)
	if _, err := ledger.Resolve(context.Background(), stale.Token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fresh := issuedToken(t, ledger, "task.complete", `{}`)

	// Mucho después: el terminal viejo se descarta, el issued vencido se
	// marca expirado pero se conserva para Peek.
	ledger.now = func() time.Time { return base.Add(time.Hour) }
	ledger.Sweep()

	if _, err := ledger.Peek(context.Background(), stale.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected stale terminal token to be dropped, got %v", err)
	}
	peeked, err := ledger.Peek(context.Background(), fresh.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peeked.Status != domain.UndoExpired {
		t.Fatalf("expected expired status, got %q", peeked.Status)
	}
}
