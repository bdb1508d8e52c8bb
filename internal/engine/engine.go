package engine

import (
	"context"
	"log"
	"time"

	"github.com/engramd/engram/internal/store"
)

// Engine orchestrates memory saves, bounded retrieval, and decay lifecycle.
type Engine struct {
	DB       *store.DB
	Embedder Embedder
	Registry *Registry
}

// New creates a new Engine over the given database and category registry.
func New(db *store.DB, registry *Registry) *Engine {
	if registry == nil {
		registry = NewRegistry(DefaultCapability())
	}
	return &Engine{
		DB:       db,
		Registry: registry,
	}
}

// SetEmbedder configures the embedding provider.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

func nowMilli() int64 {
	return time.Now().UnixMilli()
}

// SaveRequest carries the inputs of a save operation.
type SaveRequest struct {
	UserID     string
	Content    string
	Category   string
	Metadata   map[string]string
	Importance *float64
}

// Save validates the request, runs duplicate detection and resolution for the
// record's category, and either mutates the matched record or creates a new
// one. The returned record is the survivor.
func (e *Engine) Save(ctx context.Context, req SaveRequest) (*store.Memory, error) {
	if req.UserID == "" {
		return nil, &ValidationError{Field: "user", Reason: "must not be empty"}
	}
	if req.Content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if req.Importance != nil && (*req.Importance < 0 || *req.Importance > 1) {
		return nil, &ValidationError{Field: "importance", Reason: "must be within [0,1]"}
	}

	capability := e.Registry.Capability(req.Category)
	in := &incoming{
		content:    req.Content,
		hash:       ContentHash(req.Content, capability.Dedup.NormalizeContent),
		tokens:     EstimateTokens(req.Content),
		importance: req.Importance,
		metadata:   req.Metadata,
	}

	if capability.Dedup.Enabled {
		existing, sim, err := findDuplicate(ctx, e.DB, e.Embedder, req.UserID, in, capability.Dedup)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return resolveDuplicate(e.DB, existing, in, capability.Dedup, &capability.Decay, sim, e.embedModel())
		}
	}

	importance := 0.5
	if req.Importance != nil {
		importance = *req.Importance
	}

	m := &store.Memory{
		UserID:      req.UserID,
		Category:    req.Category,
		Content:     req.Content,
		ContentHash: in.hash,
		Decay:       InitialDecay(&capability.Decay, importance),
		Importance:  importance,
		Immutable:   capability.Decay.Strategy == StrategyPermanent,
		TokenCount:  in.tokens,
		Metadata:    req.Metadata,
	}
	if err := e.DB.CreateMemory(m); err != nil {
		return nil, &StorageError{Op: "create memory", Err: err}
	}

	e.embedAndStore(ctx, m, in.embedding)
	return m, nil
}

// UpdateRequest carries the inputs of an explicit update. Nil fields are left
// untouched; supplied metadata replaces the record's metadata wholesale.
type UpdateRequest struct {
	Content    *string
	Importance *float64
	Metadata   map[string]string
}

// Update mutates an existing record. A content change regenerates the hash,
// embedding and token count.
func (e *Engine) Update(ctx context.Context, id string, req UpdateRequest) (*store.Memory, error) {
	if req.Importance != nil && (*req.Importance < 0 || *req.Importance > 1) {
		return nil, &ValidationError{Field: "importance", Reason: "must be within [0,1]"}
	}
	if req.Content != nil && *req.Content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	m, err := e.DB.GetMemory(id)
	if err != nil {
		return nil, &StorageError{Op: "get memory", Err: err}
	}
	if m == nil {
		return nil, &StorageError{Op: "get memory", Err: ErrNotFound}
	}
	if m.Immutable {
		return nil, &ImmutableRecordError{ID: m.ID}
	}

	capability := e.Registry.Capability(m.Category)
	contentChanged := false
	if req.Content != nil && *req.Content != m.Content {
		m.Content = *req.Content
		m.ContentHash = ContentHash(m.Content, capability.Dedup.NormalizeContent)
		m.TokenCount = EstimateTokens(m.Content)
		contentChanged = true
	}
	if req.Importance != nil {
		m.Importance = *req.Importance
	}
	if req.Metadata != nil {
		m.Metadata = req.Metadata
	}

	if err := e.DB.UpdateMemory(m); err != nil {
		return nil, &StorageError{Op: "update memory", Err: err}
	}
	if contentChanged {
		e.embedAndStore(ctx, m, nil)
	}
	return m, nil
}

// Get returns a record by id, or a not-found StorageError.
func (e *Engine) Get(id string) (*store.Memory, error) {
	m, err := e.DB.GetMemory(id)
	if err != nil {
		return nil, &StorageError{Op: "get memory", Err: err}
	}
	if m == nil {
		return nil, &StorageError{Op: "get memory", Err: ErrNotFound}
	}
	return m, nil
}

// Delete removes a record and its vector.
func (e *Engine) Delete(id string) error {
	if err := e.DB.DeleteMemory(id); err != nil {
		return &StorageError{Op: "delete memory", Err: err}
	}
	return nil
}

// embedAndStore computes and persists the record's embedding. Embedding
// failures are logged, not surfaced: a record without a vector still works,
// it just misses semantic dedup and search until re-embedded.
func (e *Engine) embedAndStore(ctx context.Context, m *store.Memory, vec []float64) {
	if e.Embedder == nil {
		return
	}
	if vec == nil {
		var err error
		vec, err = e.Embedder.Embed(ctx, m.Content)
		if err != nil {
			log.Printf("embed memory %s: %v", m.ID, err)
			return
		}
	}
	if err := e.DB.SaveVector(m.ID, m.UserID, vec, e.Embedder.Model()); err != nil {
		log.Printf("save vector %s: %v", m.ID, err)
	}
}

func (e *Engine) embedModel() string {
	if e.Embedder == nil {
		return ""
	}
	return e.Embedder.Model()
}

// EmbedMissing embeds all records that don't have a vector or whose model
// differs from the configured embedder's. An empty userID covers every user.
func (e *Engine) EmbedMissing(ctx context.Context, userID string) (int, error) {
	if e.Embedder == nil {
		return 0, nil
	}

	var memories []store.Memory
	var err error
	if userID == "" {
		memories, err = e.DB.AllMemories()
	} else {
		memories, err = e.DB.FindByUser(userID, "")
	}
	if err != nil {
		return 0, &StorageError{Op: "list memories", Err: err}
	}

	embedded := 0
	for i := range memories {
		existing, err := e.DB.GetVector(memories[i].ID)
		if err != nil {
			log.Printf("embed missing: get vector for %s: %v", memories[i].ID, err)
			continue
		}
		if existing != nil && existing.Model == e.Embedder.Model() {
			continue
		}

		vec, err := e.Embedder.Embed(ctx, memories[i].Content)
		if err != nil {
			log.Printf("embed missing: %v", err)
			continue
		}
		if err := e.DB.SaveVector(memories[i].ID, memories[i].UserID, vec, e.Embedder.Model()); err != nil {
			log.Printf("embed missing: save vector: %v", err)
			continue
		}
		embedded++
	}

	return embedded, nil
}
