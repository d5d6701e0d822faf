package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"treechat/internal/domain"
	"treechat/internal/llm"
)

func forkFixture(t *testing.T) (*ForkService, *memThreadRepo, *memMessageRepo) {
	t.Helper()

	threads := newMemThreadRepo(domain.Thread{
		ID:        "t1",
		Title:     "Impuestos",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
	messages := newMemMessageRepo()
	for _, m := range []domain.Message{
		msgAt("m1", "", 0),
		msgAt("m2", "m1", 1*time.Minute),
		msgAt("m3", "m1", 2*time.Minute),
	} {
		if err := messages.Insert(context.Background(), m); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}

	planner := NewForkPlanner(&llm.MockClient{Summary: "resumen"})
	svc := NewForkService(threads, messages, planner, zap.NewNop())
	return svc, threads, messages
}

func TestForkService_FullForkFromMessage(t *testing.T) {
	// Escenario completo: fork full desde m2 copia [m1, m2] y no m3, y la
	// procedencia apunta al m2 original.
	svc, threads, messages := forkFixture(t)

	fork, err := svc.CreateFork(context.Background(), "t1", "Rama impuestos", domain.ForkFull, "m2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fork.ParentContextID != "t1" {
		t.Fatalf("expected parent context t1, got %q", fork.ParentContextID)
	}
	if fork.ForkType != domain.ForkFull {
		t.Fatalf("expected fork type full, got %q", fork.ForkType)
	}
	if fork.ForkedFromMessageID != "m2" {
		t.Fatalf("expected provenance to original m2, got %q", fork.ForkedFromMessageID)
	}

	if _, err := threads.GetByID(context.Background(), fork.ID); err != nil {
		t.Fatalf("expected fork thread persisted: %v", err)
	}

	copied, _ := messages.ListByThreadID(context.Background(), fork.ID)
	if len(copied) != 2 {
		t.Fatalf("expected copies of [m1 m2] only, got %d messages", len(copied))
	}
	for _, cp := range copied {
		if cp.ID == "m1" || cp.ID == "m2" {
			t.Fatalf("copy shares identity with source: %s", cp.ID)
		}
		if cp.Content == "msg m3" {
			t.Fatalf("sibling branch m3 leaked into the fork")
		}
	}
}

func TestForkService_FullForkIndependence(t *testing.T) {
	// Mutar los mensajes del fork no toca la lista del hilo origen.
	svc, _, messages := forkFixture(t)

	fork, err := svc.CreateFork(context.Background(), "t1", "", domain.ForkFull, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	extra := msgAt("nuevo", "", 10*time.Minute)
	extra.ThreadID = fork.ID
	if err := messages.Insert(context.Background(), extra); err != nil {
		t.Fatalf("insert into fork: %v", err)
	}

	source, _ := messages.ListByThreadID(context.Background(), "t1")
	if len(source) != 3 {
		t.Fatalf("source thread mutated: expected 3 messages, got %d", len(source))
	}
}

func TestForkService_SummaryForkShape(t *testing.T) {
	svc, _, messages := forkFixture(t)

	fork, err := svc.CreateFork(context.Background(), "t1", "", domain.ForkSummary, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seeded, _ := messages.ListByThreadID(context.Background(), fork.ID)
	if len(seeded) != 1 {
		t.Fatalf("expected exactly one seeded message, got %d", len(seeded))
	}
	if !seeded[0].IsCheckpoint {
		t.Fatalf("expected checkpoint seed")
	}
}

func TestForkService_EmptyFork(t *testing.T) {
	svc, _, messages := forkFixture(t)

	fork, err := svc.CreateFork(context.Background(), "t1", "", domain.ForkEmpty, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seeded, _ := messages.ListByThreadID(context.Background(), fork.ID)
	if len(seeded) != 0 {
		t.Fatalf("expected empty thread, got %d messages", len(seeded))
	}
}

func TestForkService_SeedFailureRollsBackThread(t *testing.T) {
	// Atomicidad: si la semilla no entra, el hilo recién creado se borra.
	// Nadie debe listar un fork a medias.
	svc, threads, messages := forkFixture(t)
	messages.batchErr = errors.New("db caida")

	_, err := svc.CreateFork(context.Background(), "t1", "", domain.ForkFull, "m2")
	if err == nil {
		t.Fatalf("expected error from seed insertion")
	}

	all, _ := threads.List(context.Background())
	if len(all) != 1 || all[0].ID != "t1" {
		t.Fatalf("expected only source thread after rollback, got %d threads", len(all))
	}
	if len(threads.deleted) != 1 {
		t.Fatalf("expected compensating delete, got %v", threads.deleted)
	}
}

func TestForkService_OriginNotFoundCreatesNothing(t *testing.T) {
	svc, threads, _ := forkFixture(t)

	_, err := svc.CreateFork(context.Background(), "t1", "", domain.ForkFull, "fantasma")
	if !errors.Is(err, ErrOriginNotFound) {
		t.Fatalf("expected ErrOriginNotFound, got %v", err)
	}

	all, _ := threads.List(context.Background())
	if len(all) != 1 {
		t.Fatalf("expected no thread created, got %d", len(all))
	}
}

func TestForkService_RejectsCycleOnIDReuse(t *testing.T) {
	// Con ids reciclados el candidato podría coincidir con un ancestro del
	// origen: el fork se rechaza.
	svc, threads, _ := forkFixture(t)

	if err := threads.Create(context.Background(), domain.Thread{
		ID:              "t2",
		Title:           "Hijo",
		ParentContextID: "t1",
	}); err != nil {
		t.Fatalf("seed child thread: %v", err)
	}
	svc.newID = func() string { return "t1" }

	_, err := svc.CreateFork(context.Background(), "t2", "", domain.ForkEmpty, "")
	if !errors.Is(err, ErrWouldCreateCycle) {
		t.Fatalf("expected ErrWouldCreateCycle, got %v", err)
	}
}

func TestForkService_Ancestors(t *testing.T) {
	t.Run("cadena completa, el más cercano primero", func(t *testing.T) {
		svc, threads, _ := forkFixture(t)
		threads.Create(context.Background(), domain.Thread{ID: "t2", ParentContextID: "t1"})
		threads.Create(context.Background(), domain.Thread{ID: "t3", ParentContextID: "t2"})

		chain, err := svc.Ancestors(context.Background(), "t3")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chain) != 2 || chain[0] != "t2" || chain[1] != "t1" {
			t.Fatalf("expected [t2 t1], got %v", chain)
		}
	})

	t.Run("padre borrado degrada sin error", func(t *testing.T) {
		svc, threads, _ := forkFixture(t)
		threads.Create(context.Background(), domain.Thread{ID: "t2", ParentContextID: "desaparecido"})

		chain, err := svc.Ancestors(context.Background(), "t2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chain) != 1 || chain[0] != "desaparecido" {
			t.Fatalf("expected provenance pointer preserved, got %v", chain)
		}
	})

	t.Run("hilo inexistente", func(t *testing.T) {
		svc, _, _ := forkFixture(t)
		if _, err := svc.Ancestors(context.Background(), "nope"); !errors.Is(err, ErrThreadNotFound) {
			t.Fatalf("expected ErrThreadNotFound, got %v", err)
		}
	})
}

func TestForkService_Children(t *testing.T) {
	svc, threads, _ := forkFixture(t)
	threads.Create(context.Background(), domain.Thread{ID: "t2", ParentContextID: "t1"})
	threads.Create(context.Background(), domain.Thread{ID: "t3", ParentContextID: "t1"})

	children, err := svc.Children(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 fork children, got %d", len(children))
	}
}
