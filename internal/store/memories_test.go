package store

import (
	"database/sql"
	"errors"
	"testing"
)

func seedMemory(t *testing.T, db *DB, m *Memory) *Memory {
	t.Helper()
	if m.Decay == 0 {
		m.Decay = 100
	}
	if err := db.CreateMemory(m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	return m
}

func TestCreateAndGetMemory(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, &Memory{
		UserID:      "alice",
		Category:    "fact",
		Content:     "Prefers espresso over filter coffee",
		ContentHash: "abc123",
		Importance:  0.7,
		TokenCount:  9,
		Metadata:    map[string]string{"source": "chat"},
	})
	if m.ID == "" {
		t.Fatal("CreateMemory assigned no id")
	}
	if m.CreatedAt == 0 || m.UpdatedAt == 0 {
		t.Error("timestamps not set on create")
	}

	got, err := db.GetMemory(m.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got == nil {
		t.Fatal("GetMemory returned nil")
	}
	if got.Content != m.Content || got.Decay != 100 || got.Importance != 0.7 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Metadata["source"] != "chat" {
		t.Errorf("metadata = %v, want source=chat", got.Metadata)
	}
}

func TestGetMemoryMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetMemory("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got != nil {
		t.Errorf("GetMemory = %+v, want nil for missing id", got)
	}
}

func TestFindByUserOrderedByID(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 5; i++ {
		seedMemory(t, db, &Memory{UserID: "alice", Category: "fact", Content: "memory"})
	}
	seedMemory(t, db, &Memory{UserID: "bob", Category: "fact", Content: "other user"})

	memories, err := db.FindByUser("alice", "")
	if err != nil {
		t.Fatalf("FindByUser: %v", err)
	}
	if len(memories) != 5 {
		t.Fatalf("found %d memories, want 5", len(memories))
	}
	for i := 1; i < len(memories); i++ {
		if memories[i-1].ID >= memories[i].ID {
			t.Errorf("memories not in id order: %s before %s", memories[i-1].ID, memories[i].ID)
		}
	}
}

func TestFindByUserCategoryFilter(t *testing.T) {
	db := testDB(t)

	seedMemory(t, db, &Memory{UserID: "alice", Category: "fact", Content: "a fact"})
	seedMemory(t, db, &Memory{UserID: "alice", Category: "event", Content: "an event"})

	memories, err := db.FindByUser("alice", "event")
	if err != nil {
		t.Fatalf("FindByUser: %v", err)
	}
	if len(memories) != 1 || memories[0].Category != "event" {
		t.Errorf("category filter returned %+v", memories)
	}
}

func TestFindByHashSkipsExpired(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, &Memory{
		UserID: "alice", Category: "fact", Content: "a fact", ContentHash: "deadbeef",
	})

	got, err := db.FindByHash("alice", "deadbeef")
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if got == nil || got.ID != m.ID {
		t.Fatalf("FindByHash = %+v, want %s", got, m.ID)
	}

	if err := db.UpdateDecay(m.ID, 0); err != nil {
		t.Fatalf("UpdateDecay: %v", err)
	}
	got, err = db.FindByHash("alice", "deadbeef")
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if got != nil {
		t.Errorf("expired record matched by hash: %+v", got)
	}

	if got, _ := db.FindByHash("bob", "deadbeef"); got != nil {
		t.Errorf("hash lookup leaked across users: %+v", got)
	}
}

func TestUpdateMemoryMissing(t *testing.T) {
	db := testDB(t)

	err := db.UpdateMemory(&Memory{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Content: "x"})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("UpdateMemory missing = %v, want sql.ErrNoRows", err)
	}
}

func TestTouchMemory(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, &Memory{UserID: "alice", Category: "fact", Content: "a fact"})

	if err := db.TouchMemory(m.ID); err != nil {
		t.Fatalf("TouchMemory: %v", err)
	}
	if err := db.TouchMemory(m.ID); err != nil {
		t.Fatalf("TouchMemory: %v", err)
	}

	got, _ := db.GetMemory(m.ID)
	if got.UseCount != 2 {
		t.Errorf("use count = %d, want 2", got.UseCount)
	}
	if got.LastUsedAt == nil {
		t.Error("last used timestamp not set")
	}
}

func TestDeleteMemoryRemovesVector(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, &Memory{UserID: "alice", Category: "fact", Content: "a fact"})
	if err := db.SaveVector(m.ID, "alice", []float64{0.1, 0.2}, "tfidf"); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}

	if err := db.DeleteMemory(m.ID); err != nil {
		t.Fatalf("DeleteMemory: %v", err)
	}

	if got, _ := db.GetMemory(m.ID); got != nil {
		t.Error("memory still present after delete")
	}
	if vec, _ := db.GetVector(m.ID); vec != nil {
		t.Error("vector still present after delete")
	}
}

func TestNewIDOrdering(t *testing.T) {
	// ULIDs generated in sequence sort by creation time.
	prev := NewID()
	for i := 0; i < 100; i++ {
		next := NewID()
		if next <= prev {
			t.Fatalf("id ordering violated: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestNilMetadataRoundTrip(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, &Memory{UserID: "alice", Category: "fact", Content: "bare"})

	got, err := db.GetMemory(m.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got.Metadata != nil {
		t.Errorf("metadata = %v, want nil", got.Metadata)
	}
}
