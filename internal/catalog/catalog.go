// Package catalog holds the immutable schema snapshot the pipeline
// consults: table and column metadata plus curated descriptions.
package catalog

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrUnknownTable is returned when a resolution request names a table
// absent from the snapshot. The table selector only emits catalog names,
// so observing this error means an invariant was violated upstream.
var ErrUnknownTable = errors.New("unknown table")

// Column describes one column of a catalog table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Table describes one queryable table.
type Table struct {
	Name        string   `json:"name"`
	Columns     []Column `json:"columns"`
	RowEstimate int64    `json:"row_estimate"`
	Description string   `json:"description,omitempty"`
}

// Catalog is a read-only snapshot of table metadata. It is never mutated
// after construction; reloads swap in a fresh snapshot via Holder.
type Catalog struct {
	tables []Table
	index  map[string]int
}

// New builds a snapshot preserving declaration order. Duplicate names
// keep the first occurrence.
func New(tables []Table) *Catalog {
	c := &Catalog{
		tables: make([]Table, 0, len(tables)),
		index:  make(map[string]int, len(tables)),
	}
	for _, t := range tables {
		if _, dup := c.index[t.Name]; dup {
			continue
		}
		c.index[t.Name] = len(c.tables)
		c.tables = append(c.tables, t)
	}
	return c
}

// Tables returns all tables in declaration order.
func (c *Catalog) Tables() []Table {
	return c.tables
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	return len(c.tables)
}

// Lookup returns the table with the given name.
func (c *Catalog) Lookup(name string) (Table, bool) {
	i, ok := c.index[name]
	if !ok {
		return Table{}, false
	}
	return c.tables[i], true
}

// Resolve maps each requested name to its schema. It fails with
// ErrUnknownTable on the first absent name.
func (c *Catalog) Resolve(names []string) (map[string]Table, error) {
	out := make(map[string]Table, len(names))
	for _, name := range names {
		t, ok := c.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
		}
		out[name] = t
	}
	return out, nil
}

// Holder publishes the current snapshot to concurrent readers. Requests
// read one snapshot for their whole run; a reload never mutates a
// snapshot already handed out.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder creates a holder with the given initial snapshot.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Current returns the active snapshot.
func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

// Swap atomically replaces the active snapshot.
func (h *Holder) Swap(c *Catalog) {
	h.current.Store(c)
}
