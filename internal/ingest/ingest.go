// Package ingest implements the ingest/extract/classify/conflict/embed
// pipeline (C4): turning raw text into resolved, classified, deduplicated
// Items with vectors, atomically within a single store.UnitOfWork.
//
// Grounded on original_source/kiroku_memory's ingest.py/extract.py
// orchestration, with LLM calls delegated to internal/llm and entity
// resolution to internal/resolve. The transactional shape — one UnitOfWork
// per request, explicit Commit, implicit rollback on any error — follows
// the teacher's internal/session package's "scope owns its own commit"
// pattern, generalized from a single session store to six repositories.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/apperr"
	"github.com/MrWong99/tieredmem/internal/embedding"
	"github.com/MrWong99/tieredmem/internal/llm"
	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/resolve"
	"github.com/MrWong99/tieredmem/internal/store"
	embedprovider "github.com/MrWong99/tieredmem/pkg/provider/embeddings"
	llmprovider "github.com/MrWong99/tieredmem/pkg/provider/llm"
)

// ProvenanceModel is the predicate of the extraction provenance meta-fact
// recorded when Config.RecordProvenance is set; the meta-fact's object is
// the classifier that assigned the item's category.
const ProvenanceModel = "extracted_by"

// Config tunes pipeline behavior; all fields have safe zero values.
type Config struct {
	ConflictStrategy    model.ConflictStrategy
	UseLLMClassify      bool
	UseLLMConflict      bool
	RecordProvenance    bool
	EmbeddingDimensions int
}

// Pipeline runs the ingest/extract/classify/conflict/embed steps against a
// configured store, embedding provider, and LLM provider. A Pipeline is
// stateless beyond its dependencies and is safe for concurrent use — all
// mutable state lives in the UnitOfWork passed to each call.
type Pipeline struct {
	st       store.Store
	embedder embedprovider.Provider
	llmProv  llmprovider.Provider
	cfg      Config
}

// New builds a Pipeline. embedder or llmProv may be nil: embedding calls are
// then skipped (step 5 degrades per §7's ExternalProviderUnavailable
// behavior) and classification/conflict-check fall back to their rule-based
// forms.
func New(st store.Store, embedder embedprovider.Provider, llmProv llmprovider.Provider, cfg Config) *Pipeline {
	if cfg.ConflictStrategy == "" {
		cfg.ConflictStrategy = model.ConflictStrategyRecency
	}
	return &Pipeline{st: st, embedder: embedder, llmProv: llmProv, cfg: cfg}
}

// ItemInput describes one fact before classification, conflict resolution,
// and embedding. Category may be empty, in which case step 3 classifies it.
type ItemInput struct {
	ResourceID *uuid.UUID
	Subject    string
	Predicate  string
	Object     string
	Category   string
	Confidence float64
}

// IngestResource performs step 1: append an append-only Resource row and
// return its id. This is its own short transaction — extraction is a
// separate request (ExtractResource) per §4.4.
func (p *Pipeline) IngestResource(ctx context.Context, source, content string, metadata map[string]string) (uuid.UUID, error) {
	if content == "" {
		return uuid.Nil, apperr.NewValidation("content", "must not be empty")
	}
	uow, err := p.st.Begin(ctx)
	if err != nil {
		return uuid.Nil, apperr.NewBackend("ingest.begin", err)
	}
	defer uow.Rollback(ctx)

	id, err := uow.Resources().Create(ctx, &model.Resource{
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Content:   content,
		Metadata:  metadata,
	})
	if err != nil {
		return uuid.Nil, apperr.NewBackend("ingest.create_resource", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return uuid.Nil, apperr.NewBackend("ingest.commit", err)
	}
	return id, nil
}

// ExtractResource performs steps 2-6 for one resource: extract facts via the
// LLM, and for each fact run classify, conflict resolution, embed, and
// (optionally) meta-fact creation — all inside one transaction. A failure
// mid-pipeline rolls back every Item created for this call.
//
// A malformed or empty LLM response is not an error: it yields zero items,
// per §7's MalformedLLMOutput/ExternalProviderUnavailable degraded-operation
// policy.
func (p *Pipeline) ExtractResource(ctx context.Context, resourceID uuid.UUID) ([]model.Item, error) {
	uow, err := p.st.Begin(ctx)
	if err != nil {
		return nil, apperr.NewBackend("extract.begin", err)
	}
	defer uow.Rollback(ctx)

	res, err := uow.Resources().Get(ctx, resourceID)
	if err != nil {
		return nil, apperr.NewBackend("extract.get_resource", err)
	}
	if res == nil {
		return nil, apperr.NewNotFound("resource", resourceID.String())
	}

	var facts []llm.ExtractedFact
	if p.llmProv != nil {
		facts, err = llm.ExtractFacts(ctx, p.llmProv, res.Content)
		if err != nil {
			// Degrade to "zero facts" per §7 rather than aborting the request.
			facts = nil
		}
	}

	items := make([]model.Item, 0, len(facts))
	for _, f := range facts {
		it, err := p.processItem(ctx, uow, ItemInput{
			ResourceID: &resourceID,
			Subject:    f.Subject,
			Predicate:  f.Predicate,
			Object:     f.Object,
			Category:   f.Category,
			Confidence: f.Confidence,
		}, false)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, apperr.NewBackend("extract.commit", err)
	}
	return items, nil
}

// CreateItem performs steps 3-6 for one directly-created fact (the /v2/items
// API, as opposed to extraction): classify, conflict-resolve, embed, and
// create its graph edge, all in one transaction.
func (p *Pipeline) CreateItem(ctx context.Context, input ItemInput) (*model.Item, error) {
	if input.Subject == "" || input.Predicate == "" || input.Object == "" {
		return nil, apperr.NewValidation("subject/predicate/object", "must not be empty")
	}
	if input.Confidence < 0 || input.Confidence > 1 {
		return nil, apperr.NewValidation("confidence", "must be within [0,1]")
	}
	if input.Confidence == 0 {
		input.Confidence = 1.0
	}

	uow, err := p.st.Begin(ctx)
	if err != nil {
		return nil, apperr.NewBackend("create_item.begin", err)
	}
	defer uow.Rollback(ctx)

	it, err := p.processItem(ctx, uow, input, true)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, apperr.NewBackend("create_item.commit", err)
	}
	return it, nil
}

// processItem runs steps 3-6 against an already-open UnitOfWork: classify,
// persist, resolve conflicts, embed, and (when isDirect) create the item's
// graph edge. Meta-fact provenance (step 6) is only ever attached when the
// caller is ExtractResource, matching §4.4's "triggered by extract".
func (p *Pipeline) processItem(ctx context.Context, uow store.UnitOfWork, input ItemInput, isDirect bool) (*model.Item, error) {
	canonicalSubject := resolve.Resolve(input.Subject)
	canonicalObject := resolve.Resolve(input.Object)

	category := input.Category
	confidence := input.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	it := model.Item{
		CreatedAt:        time.Now().UTC(),
		ResourceID:       input.ResourceID,
		Subject:          input.Subject,
		Predicate:        input.Predicate,
		Object:           input.Object,
		Category:         category,
		Confidence:       confidence,
		Status:           model.StatusActive,
		CanonicalSubject: canonicalSubject,
		CanonicalObject:  canonicalObject,
	}

	// Step 3: classify, unless the caller (or the extractor) already set one.
	if it.Category == "" {
		cat, err := llm.ClassifyItem(ctx, p.llmProv, it, p.cfg.UseLLMClassify)
		if err != nil {
			cat = llm.RuleBasedClassify(it)
		}
		it.Category = cat
	}

	id, err := uow.Items().Create(ctx, &it)
	if err != nil {
		return nil, apperr.NewBackend("processItem.create", err)
	}
	it.ID = id

	// Step 4: conflict resolution against every other active item sharing
	// (canonical_subject, predicate).
	if err := p.resolveConflicts(ctx, uow, &it); err != nil {
		return nil, err
	}

	// Step 5: embed, skipping silently on provider error or absence.
	p.embedItem(ctx, uow, &it)
	if isDirect {
		edge := model.GraphEdge{
			Subject:   it.CanonicalSubject,
			Predicate: it.Predicate,
			Object:    it.CanonicalObject,
			Weight:    1.0,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := uow.Graph().Create(ctx, &edge); err != nil {
			return nil, apperr.NewBackend("processItem.create_edge", err)
		}
	}

	// Step 6: optional provenance meta-fact, extraction only.
	if !isDirect && p.cfg.RecordProvenance {
		classifier := "rule-based"
		if p.cfg.UseLLMClassify && p.llmProv != nil {
			classifier = "llm"
		}
		if _, err := uow.Items().CreateMetaFact(ctx, it.ID, ProvenanceModel, classifier, 1.0); err != nil {
			return nil, apperr.NewBackend("processItem.create_meta", err)
		}
	}

	return &it, nil
}

// resolveConflicts implements step 4: find every active item sharing
// (canonical_subject, predicate) with it, and for each whose object differs,
// apply the configured strategy. The loser is archived and its supersedes
// left untouched (it is never a winner again); the winner's Supersedes is
// set to point at the loser. On a tie, the new item always wins, matching
// original_source/kiroku_memory/conflict.py's resolve_conflict.
func (p *Pipeline) resolveConflicts(ctx context.Context, uow store.UnitOfWork, it *model.Item) error {
	candidates, err := uow.Items().FindPotentialConflicts(ctx, it.CanonicalSubject, it.Predicate, &it.ID)
	if err != nil {
		return apperr.NewBackend("resolveConflicts.find", err)
	}

	for _, candidate := range candidates {
		if candidate.CanonicalObject == it.CanonicalObject {
			continue // not a conflict: same object, just a duplicate
		}
		conflicts, err := llm.CheckConflict(ctx, p.llmProv, *it, candidate, p.cfg.UseLLMConflict)
		if err != nil || !conflicts {
			continue
		}

		newWins := p.newItemWins(*it, candidate)
		winner, loser := it, &candidate
		if !newWins {
			winner, loser = &candidate, it
		}

		loser.Status = model.StatusArchived
		if err := uow.Items().UpdateStatus(ctx, loser.ID, model.StatusArchived); err != nil {
			return apperr.NewBackend("resolveConflicts.archive", err)
		}
		winner.Supersedes = &loser.ID
		if err := uow.Items().Update(ctx, winner); err != nil {
			return apperr.NewBackend("resolveConflicts.supersede", err)
		}
	}
	return nil
}

// newItemWins applies the configured ConflictStrategy to decide whether the
// newly-created item beats an existing candidate. Ties always favor the new
// item (it is always at least as recent and was compared last).
func (p *Pipeline) newItemWins(newItem, candidate model.Item) bool {
	switch p.cfg.ConflictStrategy {
	case model.ConflictStrategyConfidence:
		return newItem.Confidence >= candidate.Confidence
	case model.ConflictStrategyRecency:
		fallthrough
	default:
		return !newItem.CreatedAt.Before(candidate.CreatedAt)
	}
}

// embedItem performs step 5: build the embedding text, call the provider,
// and upsert the vector. Any provider failure (nil provider, network error,
// dimension mismatch) is swallowed — per §7's ExternalProviderUnavailable
// policy, embedding is best-effort and never aborts the pipeline.
func (p *Pipeline) embedItem(ctx context.Context, uow store.UnitOfWork, it *model.Item) {
	if p.embedder == nil {
		return
	}
	text := embedding.BuildTextForItem(*it)
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return
	}
	if p.cfg.EmbeddingDimensions > 0 {
		vec = embedding.AdaptVector(vec, p.cfg.EmbeddingDimensions)
	}
	it.Embedding = vec
	_ = uow.Embeddings().Upsert(ctx, it.ID, vec)
}
