package service

import (
	"testing"

	"treechat/internal/domain"
)

func TestPendingOverlay_StageAndMergeOrder(t *testing.T) {
	overlay := NewPendingOverlay()
	overlay.Stage("c1", domain.Message{ThreadID: "t1", Role: domain.RoleUser, Content: "primero"})
	overlay.Stage("c2", domain.Message{ThreadID: "t1", Role: domain.RoleUser, Content: "segundo"})

	base := []domain.Message{{ID: "m1", Content: "histórico"}}
	merged := overlay.Merge(base)

	want := []string{"m1", "c1", "c2"}
	if !equalIDs(merged, want) {
		t.Fatalf("expected order %v, got %v", want, ids(merged))
	}
	if !overlay.Pending("c1") {
		t.Fatalf("c1 should still be pending")
	}
}

func TestPendingOverlay_CommitSwapsForServerRecord(t *testing.T) {
	overlay := NewPendingOverlay()
	overlay.Stage("c1", domain.Message{ThreadID: "t1", Content: "hola"})

	// El servidor respondió con el registro definitivo; la versión staged
	// se reemplaza entera, nunca se renombra en el lugar.
	overlay.Commit("c1", domain.Message{ID: "m-real", ThreadID: "t1", Content: "hola"})

	if overlay.Pending("c1") {
		t.Fatalf("c1 should be reconciled")
	}

	merged := overlay.Merge(nil)
	if len(merged) != 1 || merged[0].ID != "m-real" {
		t.Fatalf("expected the server record to be retained, got %v", ids(merged))
	}

	// Cuando la base autoritativa ya trae el mensaje, el retén se suelta y
	// no aparece duplicado.
	base := []domain.Message{{ID: "m-real", ThreadID: "t1", Content: "hola"}}
	merged = overlay.Merge(base)
	if len(merged) != 1 {
		t.Fatalf("confirmed record duplicated: %v", ids(merged))
	}
	merged = overlay.Merge(nil)
	if len(merged) != 0 {
		t.Fatalf("retained record should be released once the base has it")
	}
}

func TestPendingOverlay_Rollback(t *testing.T) {
	overlay := NewPendingOverlay()
	overlay.Stage("c1", domain.Message{ThreadID: "t1", Content: "no llegó"})
	overlay.Rollback("c1")

	if overlay.Pending("c1") {
		t.Fatalf("rolled back write should not be pending")
	}
	if merged := overlay.Merge(nil); len(merged) != 0 {
		t.Fatalf("rolled back write should not render, got %v", ids(merged))
	}
}

func TestPendingOverlay_RestageKeepsOriginalPosition(t *testing.T) {
	overlay := NewPendingOverlay()
	overlay.Stage("c1", domain.Message{Content: "v1"})
	overlay.Stage("c2", domain.Message{Content: "otro"})
	overlay.Stage("c1", domain.Message{Content: "v2"})

	merged := overlay.Merge(nil)
	want := []string{"c1", "c2"}
	if !equalIDs(merged, want) {
		t.Fatalf("expected order %v, got %v", want, ids(merged))
	}
	if merged[0].Content != "v2" {
		t.Fatalf("restage should keep the latest content, got %q", merged[0].Content)
	}
}
