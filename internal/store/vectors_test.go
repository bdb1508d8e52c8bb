package store

import (
	"math"
	"testing"
)

func TestVectorRoundTrip(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, &Memory{UserID: "alice", Category: "fact", Content: "a fact"})

	embedding := []float64{0.25, -1.5, 3.14159, 0}
	if err := db.SaveVector(m.ID, "alice", embedding, "tfidf"); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}

	vec, err := db.GetVector(m.ID)
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if vec == nil {
		t.Fatal("GetVector returned nil")
	}
	if vec.Model != "tfidf" || vec.Dimensions != 4 {
		t.Errorf("vector meta = %s/%d, want tfidf/4", vec.Model, vec.Dimensions)
	}
	for i, v := range embedding {
		if math.Abs(vec.Embedding[i]-v) > 1e-12 {
			t.Errorf("embedding[%d] = %v, want %v", i, vec.Embedding[i], v)
		}
	}
}

func TestSaveVectorUpsert(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, &Memory{UserID: "alice", Category: "fact", Content: "a fact"})

	if err := db.SaveVector(m.ID, "alice", []float64{1, 2}, "tfidf"); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}
	if err := db.SaveVector(m.ID, "alice", []float64{3, 4, 5}, "openai:text-embedding-3-small"); err != nil {
		t.Fatalf("SaveVector replace: %v", err)
	}

	vec, _ := db.GetVector(m.ID)
	if vec.Dimensions != 3 || vec.Model != "openai:text-embedding-3-small" {
		t.Errorf("vector not replaced: %s/%d", vec.Model, vec.Dimensions)
	}

	vectors, err := db.VectorsByUser("alice")
	if err != nil {
		t.Fatalf("VectorsByUser: %v", err)
	}
	if len(vectors) != 1 {
		t.Errorf("vector count = %d, want 1 after upsert", len(vectors))
	}
}

func TestVectorsByUserOrdered(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 4; i++ {
		m := seedMemory(t, db, &Memory{UserID: "alice", Category: "fact", Content: "a fact"})
		if err := db.SaveVector(m.ID, "alice", []float64{float64(i)}, "tfidf"); err != nil {
			t.Fatalf("SaveVector: %v", err)
		}
	}

	vectors, err := db.VectorsByUser("alice")
	if err != nil {
		t.Fatalf("VectorsByUser: %v", err)
	}
	if len(vectors) != 4 {
		t.Fatalf("vector count = %d, want 4", len(vectors))
	}
	for i := 1; i < len(vectors); i++ {
		if vectors[i-1].MemoryID >= vectors[i].MemoryID {
			t.Errorf("vectors not in memory id order")
		}
	}
}

func TestGetVectorMissing(t *testing.T) {
	db := testDB(t)

	vec, err := db.GetVector("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if vec != nil {
		t.Errorf("GetVector = %+v, want nil", vec)
	}
}

func TestEncodeDecodeEmbedding(t *testing.T) {
	vec := []float64{0.1, -0.2, 1e100, -1e-100}
	buf := encodeEmbedding(vec)
	if len(buf) != len(vec)*8 {
		t.Fatalf("encoded length = %d, want %d", len(buf), len(vec)*8)
	}

	out := decodeEmbedding(buf)
	for i := range vec {
		if out[i] != vec[i] {
			t.Errorf("decoded[%d] = %v, want %v", i, out[i], vec[i])
		}
	}
}
