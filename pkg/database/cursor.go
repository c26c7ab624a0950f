package database

import (
	"iter"
	"sync"

	"github.com/mnohosten/querybook/pkg/document"
)

// Cursor iterates over the results of a find or aggregate. The query runs
// on first access, not when the cursor is created; Rewind restarts the
// iteration over the same result set.
type Cursor struct {
	produce  func() ([]*document.Document, error)
	results  []*document.Document
	err      error
	loaded   bool
	position int
	current  *document.Document
	mu       sync.Mutex
}

func newCursor(produce func() ([]*document.Document, error)) *Cursor {
	return &Cursor{produce: produce}
}

// load runs the query once (caller must hold lock)
func (c *Cursor) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.results, c.err = c.produce()
}

// Next advances to the next document. It returns false when the results
// are exhausted or the query failed; check Err to tell the two apart.
func (c *Cursor) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()
	if c.err != nil || c.position >= len(c.results) {
		c.current = nil
		return false
	}
	c.current = c.results[c.position]
	c.position++
	return true
}

// Doc returns a copy of the current document
func (c *Cursor) Doc() *document.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	return c.current.Clone()
}

// Err returns the error that stopped the iteration, if any
func (c *Cursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Rewind restarts the iteration from the first document
func (c *Cursor) Rewind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = 0
	c.current = nil
}

// Len returns the total number of results
func (c *Cursor) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.load()
	if c.err != nil {
		return 0, c.err
	}
	return len(c.results), nil
}

// All returns an iterator over copies of every result, independent of the
// cursor position
func (c *Cursor) All() iter.Seq[*document.Document] {
	return func(yield func(*document.Document) bool) {
		c.mu.Lock()
		c.load()
		results := c.results
		c.mu.Unlock()

		for _, doc := range results {
			if !yield(doc.Clone()) {
				return
			}
		}
	}
}

// Documents returns copies of every result
func (c *Cursor) Documents() ([]*document.Document, error) {
	c.mu.Lock()
	c.load()
	results, err := c.results, c.err
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	out := make([]*document.Document, len(results))
	for i, doc := range results {
		out[i] = doc.Clone()
	}
	return out, nil
}
