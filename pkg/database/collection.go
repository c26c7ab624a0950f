package database

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mnohosten/querybook/pkg/aggregation"
	"github.com/mnohosten/querybook/pkg/cache"
	"github.com/mnohosten/querybook/pkg/document"
	"github.com/mnohosten/querybook/pkg/index"
	"github.com/mnohosten/querybook/pkg/query"
	"github.com/mnohosten/querybook/pkg/update"
)

// Collection represents a collection of documents. Documents are kept in
// insertion order, which is the stable iteration order used by every
// operation. Stored documents are never modified in place: updates store a
// new version, so results handed out earlier stay valid.
type Collection struct {
	name       string
	db         *Database
	documents  map[uint64]*document.Document // sequence -> document
	order      []uint64                      // sequences in insertion order
	nextSeq    uint64
	indexes    []*index.Index // creation order, _id_ first
	queryCache *cache.LRUCache
	logger     *zap.Logger
	mu         sync.RWMutex
}

func newCollection(name string, db *Database) *Collection {
	coll := &Collection{
		name:      name,
		db:        db,
		documents: make(map[uint64]*document.Document),
		logger:    db.logger.With(zap.String("collection", name)),
	}
	if db.config.CacheSize > 0 {
		coll.queryCache = cache.NewLRUCache(db.config.CacheSize, db.config.CacheTTL)
	}

	// Create default index on _id
	idIndex, _ := index.NewIndex(&index.IndexConfig{
		Name:   index.IDIndexName,
		Keys:   index.KeySpec{{Field: "_id", Direction: 1}},
		Unique: true,
	})
	coll.indexes = append(coll.indexes, idIndex)

	return coll
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) checkAvailable() error {
	if c.db.closed.Load() {
		return fmt.Errorf("collection %s: %w", c.name, ErrStoreUnavailable)
	}
	return nil
}

// InsertOne inserts a single document and returns its _id. A missing _id
// is generated.
func (c *Collection) InsertOne(doc map[string]interface{}) (interface{}, error) {
	if err := c.checkAvailable(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.insertLocked(document.NewDocumentFromMap(doc))
	if err != nil {
		return nil, err
	}
	c.invalidateCache()
	return id, nil
}

// InsertMany inserts documents in order and stops at the first failure.
// Documents inserted before the failure stay inserted.
func (c *Collection) InsertMany(docs []map[string]interface{}) ([]interface{}, error) {
	if err := c.checkAvailable(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.invalidateCache()

	ids := make([]interface{}, 0, len(docs))
	for i, doc := range docs {
		id, err := c.insertLocked(document.NewDocumentFromMap(doc))
		if err != nil {
			return ids, fmt.Errorf("document %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InsertDocument inserts an already built document, keeping its field order
func (c *Collection) InsertDocument(doc *document.Document) (interface{}, error) {
	if err := c.checkAvailable(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.insertLocked(doc.Clone())
	if err != nil {
		return nil, err
	}
	c.invalidateCache()
	return id, nil
}

// insertLocked stores doc (caller must hold write lock)
func (c *Collection) insertLocked(doc *document.Document) (interface{}, error) {
	id, hasID := doc.Get("_id")
	if !hasID {
		id = document.NewObjectID()
		stored := document.NewDocument()
		stored.Set("_id", id)
		for _, k := range doc.Keys() {
			v, _ := doc.Get(k)
			stored.Set(k, v)
		}
		doc = stored
	} else if _, isArray := id.([]interface{}); isArray {
		return nil, fmt.Errorf("%w: _id cannot be an array", ErrInvalidDocument)
	}

	seq := c.nextSeq + 1
	if err := c.indexInsert(doc, seq); err != nil {
		return nil, err
	}
	c.nextSeq = seq
	c.documents[seq] = doc
	c.order = append(c.order, seq)
	return id, nil
}

// indexInsert adds doc to every index, undoing partial work on failure
func (c *Collection) indexInsert(doc *document.Document, seq uint64) error {
	for i, idx := range c.indexes {
		if err := idx.Insert(doc, seq); err != nil {
			for _, done := range c.indexes[:i] {
				done.Delete(doc, seq)
			}
			return err
		}
	}
	return nil
}

func (c *Collection) indexDelete(doc *document.Document, seq uint64) {
	for _, idx := range c.indexes {
		idx.Delete(doc, seq)
	}
}

// Find returns a cursor over the documents matching q. The query runs when
// the cursor is first read.
func (c *Collection) Find(q *query.Query) (*Cursor, error) {
	if err := c.checkAvailable(); err != nil {
		return nil, err
	}
	if q == nil {
		q = query.NewQuery(nil)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	return newCursor(func() ([]*document.Document, error) {
		if err := c.checkAvailable(); err != nil {
			return nil, err
		}
		c.mu.RLock()
		defer c.mu.RUnlock()

		key := q.Key()
		if c.queryCache != nil {
			if cached, ok := c.queryCache.Get(key); ok {
				return cached.([]*document.Document), nil
			}
		}

		results, _, _ := c.executeLocked(q)
		if c.queryCache != nil {
			c.queryCache.Put(key, results)
		}
		return results, nil
	}), nil
}

// FindOne returns the first document matching filter, or nil
func (c *Collection) FindOne(filter query.Filter) (*document.Document, error) {
	cursor, err := c.Find(query.NewQuery(filter).WithLimit(1))
	if err != nil {
		return nil, err
	}
	if !cursor.Next() {
		return nil, cursor.Err()
	}
	return cursor.Doc(), nil
}

// executeLocked plans and runs q (caller must hold lock)
func (c *Collection) executeLocked(q *query.Query) ([]*document.Document, *query.QueryPlan, query.ExecutionStats) {
	planner := query.NewQueryPlanner(c.indexes)
	plan := planner.Plan(q)

	candidates, keysExamined := c.candidatesLocked(plan)
	results, stats := query.NewExecutor(candidates).ExecuteWithStats(q)
	stats.KeysExamined = keysExamined

	c.logger.Debug("query executed",
		zap.String("stage", plan.ScanType.String()),
		zap.String("index", plan.IndexName),
		zap.Int("docsExamined", stats.DocsExamined),
		zap.Int("returned", stats.Returned))

	return results, plan, stats
}

// candidatesLocked returns the documents a plan has to examine, in
// insertion order
func (c *Collection) candidatesLocked(plan *query.QueryPlan) ([]*document.Document, int) {
	if !plan.UseIndex {
		docs := make([]*document.Document, 0, len(c.order))
		for _, seq := range c.order {
			docs = append(docs, c.documents[seq])
		}
		return docs, 0
	}

	seqs, keysExamined := plan.Index.Lookup(plan.PrefixKey...)
	docs := make([]*document.Document, 0, len(seqs))
	for _, seq := range seqs {
		if doc, ok := c.documents[seq]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, keysExamined
}

// Explain runs q and reports how it was executed. The result is the same
// the query returns through Find.
func (c *Collection) Explain(q *query.Query) (*ExplainResult, error) {
	if err := c.checkAvailable(); err != nil {
		return nil, err
	}
	if q == nil {
		q = query.NewQuery(nil)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	start := time.Now()
	_, plan, stats := c.executeLocked(q)
	elapsed := time.Since(start)

	return &ExplainResult{
		Stage:               plan.ScanType.String(),
		IndexName:           plan.IndexName,
		FilterSteps:         plan.FilterSteps,
		NReturned:           stats.Returned,
		TotalKeysExamined:   stats.KeysExamined,
		TotalDocsExamined:   stats.DocsExamined,
		ExecutionTimeMillis: elapsed.Milliseconds(),
	}, nil
}

// firstMatchLocked returns the sequence of the first document matching
// filter in insertion order (caller must hold lock)
func (c *Collection) firstMatchLocked(filter query.Filter) (uint64, bool) {
	q := query.NewQuery(filter)
	plan := query.NewQueryPlanner(c.indexes).Plan(q)

	if plan.UseIndex {
		seqs, _ := plan.Index.Lookup(plan.PrefixKey...)
		for _, seq := range seqs {
			if doc, ok := c.documents[seq]; ok && filter.Match(doc) {
				return seq, true
			}
		}
		return 0, false
	}

	for _, seq := range c.order {
		if filter.Match(c.documents[seq]) {
			return seq, true
		}
	}
	return 0, false
}

// UpdateOne applies m to the first document matching filter
func (c *Collection) UpdateOne(filter query.Filter, m *update.Mutation) (*UpdateResult, error) {
	if err := c.checkAvailable(); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = query.All{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq, found := c.firstMatchLocked(filter)
	if !found {
		return &UpdateResult{}, nil
	}

	current := c.documents[seq]
	updated, changed, err := m.Apply(current)
	if err != nil {
		return nil, fmt.Errorf("update failed: %w", err)
	}
	if !changed {
		return &UpdateResult{MatchedCount: 1}, nil
	}

	c.indexDelete(current, seq)
	if err := c.indexInsert(updated, seq); err != nil {
		// restore the previous version
		if restoreErr := c.indexInsert(current, seq); restoreErr != nil {
			c.logger.Error("failed to restore index entries", zap.Error(restoreErr))
		}
		return nil, fmt.Errorf("update failed: %w", err)
	}
	c.documents[seq] = updated
	c.invalidateCache()

	return &UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

// DeleteOne removes the first document matching filter
func (c *Collection) DeleteOne(filter query.Filter) (*DeleteResult, error) {
	if err := c.checkAvailable(); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = query.All{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq, found := c.firstMatchLocked(filter)
	if !found {
		return &DeleteResult{}, nil
	}

	c.indexDelete(c.documents[seq], seq)
	delete(c.documents, seq)
	pos := sort.Search(len(c.order), func(i int) bool { return c.order[i] >= seq })
	c.order = append(c.order[:pos], c.order[pos+1:]...)
	c.invalidateCache()

	return &DeleteResult{DeletedCount: 1}, nil
}

// Count returns the number of documents matching filter
func (c *Collection) Count(filter query.Filter) (int, error) {
	if err := c.checkAvailable(); err != nil {
		return 0, err
	}
	q := query.NewQuery(filter)

	c.mu.RLock()
	defer c.mu.RUnlock()

	plan := query.NewQueryPlanner(c.indexes).Plan(q)
	candidates, _ := c.candidatesLocked(plan)
	return query.NewExecutor(candidates).Count(q), nil
}

// Aggregate returns a cursor over the output of p applied to every
// document in insertion order. The pipeline runs when the cursor is first
// read.
func (c *Collection) Aggregate(p *aggregation.Pipeline) (*Cursor, error) {
	if err := c.checkAvailable(); err != nil {
		return nil, err
	}

	return newCursor(func() ([]*document.Document, error) {
		if err := c.checkAvailable(); err != nil {
			return nil, err
		}
		c.mu.RLock()
		docs := make([]*document.Document, 0, len(c.order))
		for _, seq := range c.order {
			docs = append(docs, c.documents[seq])
		}
		c.mu.RUnlock()

		return p.Execute(docs)
	}), nil
}

// CreateIndex builds an index over keys and returns its name. Creating an
// index whose key specification matches an existing one returns the
// existing name and builds nothing.
func (c *Collection) CreateIndex(keys index.KeySpec) (string, error) {
	if err := c.checkAvailable(); err != nil {
		return "", err
	}
	if err := keys.Validate(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, idx := range c.indexes {
		if idx.Keys().Equal(keys) {
			return idx.Name(), nil
		}
	}

	idx, err := index.NewIndex(&index.IndexConfig{Keys: keys})
	if err != nil {
		return "", err
	}
	for _, seq := range c.order {
		if err := idx.Insert(c.documents[seq], seq); err != nil {
			return "", fmt.Errorf("failed to build index %s: %w", idx.Name(), err)
		}
	}
	c.indexes = append(c.indexes, idx)
	c.invalidateCache()

	c.logger.Info("index created", zap.String("index", idx.Name()), zap.Int("entries", idx.Size()))
	return idx.Name(), nil
}

// DropIndex removes an index by name
func (c *Collection) DropIndex(name string) error {
	if err := c.checkAvailable(); err != nil {
		return err
	}
	if name == index.IDIndexName {
		return ErrCannotDropIDIndex
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, idx := range c.indexes {
		if idx.Name() == name {
			c.indexes = append(c.indexes[:i], c.indexes[i+1:]...)
			c.invalidateCache()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
}

// ListIndexes returns index statistics in creation order
func (c *Collection) ListIndexes() []map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]map[string]interface{}, 0, len(c.indexes))
	for _, idx := range c.indexes {
		out = append(out, idx.Stats())
	}
	return out
}

// Stats returns collection statistics
func (c *Collection) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := map[string]interface{}{
		"name":      c.name,
		"count":     len(c.order),
		"indexes":   len(c.indexes),
		"nextSeq":   c.nextSeq,
		"cacheUsed": c.queryCache != nil,
	}
	if c.queryCache != nil {
		stats["cache"] = c.queryCache.Stats()
	}
	return stats
}

func (c *Collection) invalidateCache() {
	if c.queryCache != nil {
		c.queryCache.Clear()
	}
}
