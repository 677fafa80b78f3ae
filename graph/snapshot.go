package graph

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// DefaultEntryCap bounds how many classes and properties a snapshot lists.
// The cap keeps assistant prompts small on large graphs.
const DefaultEntryCap = 50

// ErrSnapshotUnavailable is returned before the first Compute call.
var ErrSnapshotUnavailable = errors.New("schema snapshot not yet computed")

// Snapshot is an immutable, size-bounded summary of the loaded graph.
// It is replaced wholesale on graph reload, never mutated.
type Snapshot struct {
	// Classes are the distinct rdf:type objects, lexicographically ordered,
	// capped at the configured entry cap.
	Classes []string

	// TotalClasses is the uncapped distinct class count.
	TotalClasses int

	// ClassesTruncated is set when Classes omits entries.
	ClassesTruncated bool

	// Properties are the distinct predicates, same shape as Classes.
	Properties []string

	// TotalProperties is the uncapped distinct property count.
	TotalProperties int

	// PropertiesTruncated is set when Properties omits entries.
	PropertiesTruncated bool

	// PrefixMap maps prefix to namespace IRI.
	PrefixMap map[string]string

	// TripleCount is the total number of triples in the graph.
	TripleCount int

	// ComputedAt records when this snapshot was built.
	ComputedAt time.Time
}

// SnapshotProvider computes and caches graph schema snapshots. Snapshots are
// cheap enough to recompute but are cached and only invalidated on graph
// reload, not per request.
type SnapshotProvider struct {
	store *Store
	cap   int

	mu     sync.RWMutex
	cached *Snapshot
}

// NewSnapshotProvider creates a provider over the given store.
// entryCap <= 0 uses DefaultEntryCap.
func NewSnapshotProvider(store *Store, entryCap int) *SnapshotProvider {
	if entryCap <= 0 {
		entryCap = DefaultEntryCap
	}
	return &SnapshotProvider{store: store, cap: entryCap}
}

// Snapshot returns the cached snapshot, or ErrSnapshotUnavailable if
// Compute has not run yet.
func (p *SnapshotProvider) Snapshot() (*Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cached == nil {
		return nil, ErrSnapshotUnavailable
	}
	return p.cached, nil
}

// Compute rebuilds the snapshot from the current store contents and caches it.
func (p *SnapshotProvider) Compute() *Snapshot {
	snap := computeSnapshot(p.store, p.cap)

	p.mu.Lock()
	p.cached = snap
	p.mu.Unlock()

	return snap
}

// Invalidate drops the cached snapshot. The next Compute call rebuilds it.
func (p *SnapshotProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

func computeSnapshot(store *Store, cap int) *Snapshot {
	triples := store.Triples()

	classSet := make(map[string]bool)
	propSet := make(map[string]bool)
	for _, tr := range triples {
		if tr.Pred.Kind == TermIRI {
			propSet[tr.Pred.Value] = true
			if tr.Pred.Value == rdfTypeIRI && tr.Obj.Kind == TermIRI {
				classSet[tr.Obj.Value] = true
			}
		}
	}

	classes, totalClasses, classTrunc := capSorted(classSet, cap)
	props, totalProps, propTrunc := capSorted(propSet, cap)

	return &Snapshot{
		Classes:             classes,
		TotalClasses:        totalClasses,
		ClassesTruncated:    classTrunc,
		Properties:          props,
		TotalProperties:     totalProps,
		PropertiesTruncated: propTrunc,
		PrefixMap:           store.Prefixes(),
		TripleCount:         len(triples),
		ComputedAt:          time.Now(),
	}
}

// capSorted returns the first cap entries in lexicographic order, the
// uncapped total, and whether truncation occurred. Lexicographic order keeps
// the kept subset stable across recomputes of the same graph.
func capSorted(set map[string]bool, cap int) ([]string, int, bool) {
	all := make([]string, 0, len(set))
	for v := range set {
		all = append(all, v)
	}
	sort.Strings(all)

	total := len(all)
	if total > cap {
		return all[:cap], total, true
	}
	return all, total, false
}
