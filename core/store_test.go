package transcript

import (
	"errors"
	"testing"
	"time"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-transcript/core/items"
)

func TestStoreUpsertPreservesPositionAndTimestamp(t *testing.T) {
	store := newItemStore()
	first := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Minute)

	store.upsert("a", first, func(item *items.Item) { item.Kind = items.KindMessage })
	store.upsert("b", first, func(item *items.Item) { item.Kind = items.KindMessage })
	updated := store.upsert("a", later, func(item *items.Item) {
		item.Content = []items.ContentPart{items.NewTextPart("updated")}
	})

	if !updated.Timestamp.Equal(first) {
		t.Fatalf("expected timestamp %v to be preserved, got %v", first, updated.Timestamp)
	}

	snapshot := store.snapshot()
	if len(snapshot) != 2 || snapshot[0].ID != "a" || snapshot[1].ID != "b" {
		t.Fatalf("expected order [a b], got %+v", snapshot)
	}
	if snapshot[0].Text() != "updated" {
		t.Fatalf("expected updated content, got %q", snapshot[0].Text())
	}
}

func TestStoreAppendContentCreatesMissingItem(t *testing.T) {
	store := newItemStore()
	initCalls := 0
	init := func(item *items.Item) {
		initCalls++
		item.Role = items.RoleAssistant
	}

	store.appendContent("a", time.Now(), items.NewTextPart("He"), init)
	item := store.appendContent("a", time.Now(), items.NewTextPart("llo"), init)

	if item.Text() != "Hello" {
		t.Fatalf("expected concatenated content, got %q", item.Text())
	}
	if initCalls != 1 {
		t.Fatalf("expected init to run once, got %d", initCalls)
	}
}

func TestStoreInsertIfAbsentLeavesExistingItem(t *testing.T) {
	store := newItemStore()
	store.upsert("a", time.Now(), func(item *items.Item) { item.Status = items.StatusCompleted })

	item, created := store.insertIfAbsent("a", time.Now(), func(item *items.Item) { item.Status = items.StatusRunning })
	if created {
		t.Fatalf("expected existing item to be kept")
	}
	if item.Status != items.StatusCompleted {
		t.Fatalf("expected status to be untouched, got %s", item.Status)
	}
}

func TestStoreSnapshotIsNotAliased(t *testing.T) {
	store := newItemStore()
	store.upsert("a", time.Now(), func(item *items.Item) {
		item.Content = []items.ContentPart{items.NewTextPart("original")}
		item.Annotate(items.AnnotationTargetLocale)
	})

	snapshot := store.snapshot()
	snapshot[0].Content[0].Text = "changed"
	snapshot[0].Annotations[0] = items.AnnotationFallbackFailed
	snapshot[0].Status = items.StatusCompleted

	item, _ := store.get("a")
	if item.Text() != "original" {
		t.Fatalf("expected store content to be unchanged, got %q", item.Text())
	}
	if !item.HasAnnotation(items.AnnotationTargetLocale) {
		t.Fatalf("expected store annotations to be unchanged, got %v", item.Annotations)
	}
	if item.Status != "" {
		t.Fatalf("expected store status to be unchanged, got %s", item.Status)
	}
}

func TestStoreSnapshotSurvivesCopyFailure(t *testing.T) {
	original := deepCopy
	deepCopy = func(to, from any, opt copier.Option) error { return errors.New("copy failed") }
	t.Cleanup(func() { deepCopy = original })

	store := newItemStore()
	store.upsert("a", time.Now(), func(item *items.Item) {
		item.Content = []items.ContentPart{items.NewTextPart("original")}
		item.Annotate(items.AnnotationTargetLocale)
	})

	snapshot := store.snapshot()
	if len(snapshot) != 1 || snapshot[0].Text() != "original" {
		t.Fatalf("expected content to survive a failed deep copy, got %+v", snapshot)
	}
	if !snapshot[0].HasAnnotation(items.AnnotationTargetLocale) {
		t.Fatalf("expected annotations to survive a failed deep copy, got %v", snapshot[0].Annotations)
	}

	snapshot[0].Content[0].Text = "changed"
	if item, _ := store.get("a"); item.Text() != "original" {
		t.Fatalf("expected store content to be unchanged, got %q", item.Text())
	}
}

func TestStoreMutateChecksGeneration(t *testing.T) {
	store := newItemStore()
	generation := store.generation()
	store.upsert("a", time.Now(), nil)

	if _, ok := store.mutate(generation, "a", func(item *items.Item) bool {
		item.Status = items.StatusCompleted
		return true
	}); !ok {
		t.Fatalf("expected mutate to apply for current generation")
	}

	store.clear()
	store.upsert("a", time.Now(), nil)
	if _, ok := store.mutate(generation, "a", func(item *items.Item) bool {
		t.Fatalf("expected stale mutation not to run")
		return true
	}); ok {
		t.Fatalf("expected mutate to be rejected after clear")
	}

	if _, ok := store.mutate(store.generation(), "missing", func(*items.Item) bool { return true }); ok {
		t.Fatalf("expected mutate of missing item to be rejected")
	}
}

func TestStoreCompleteCalls(t *testing.T) {
	store := newItemStore()
	store.upsert("call", time.Now(), func(item *items.Item) {
		item.Kind = items.KindFunctionCall
		item.CallID = "c1"
		item.Status = items.StatusRunning
	})
	store.upsert("other", time.Now(), func(item *items.Item) {
		item.Kind = items.KindFunctionCall
		item.CallID = "c2"
		item.Status = items.StatusRunning
	})

	completed := store.completeCalls("c1")
	if len(completed) != 1 || completed[0].ID != "call" {
		t.Fatalf("expected only call to complete, got %+v", completed)
	}
	if other, _ := store.get("other"); other.IsCompleted() {
		t.Fatalf("expected unrelated call to stay running")
	}
	if completed := store.completeCalls("c1"); len(completed) != 0 {
		t.Fatalf("expected no changes for already completed call, got %+v", completed)
	}

	if _, ok := store.findByCallID("c2", items.KindFunctionCall); !ok {
		t.Fatalf("expected call c2 to be found")
	}
	if _, ok := store.findByCallID("c2", items.KindFunctionCallOutput); ok {
		t.Fatalf("expected no output for c2")
	}
}

func TestStoreClear(t *testing.T) {
	store := newItemStore()
	store.upsert("a", time.Now(), nil)

	generation := store.clear()
	if generation != 1 {
		t.Fatalf("expected generation 1, got %d", generation)
	}
	if store.len() != 0 {
		t.Fatalf("expected empty store, got %d items", store.len())
	}
	if _, ok := store.get("a"); ok {
		t.Fatalf("expected cleared item to be gone")
	}
}
