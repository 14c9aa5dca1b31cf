package timeline

import "sync"

// Kinds used to key identifier sequences
const (
	KindEvent     = "event"
	KindCondition = "condition"
	KindTimeline  = "timeline"
)

// Version is the model version tag carried by every entity
const Version = "0.1"

// Identifiable is implemented by every entity of the model.
// The id is a plain mutable attribute; uniqueness is the container's job.
type Identifiable interface {
	ID() int
	SetID(id int)
	Version() string
}

// IDRegistry hands out identifiers from one counter per entity kind.
// A fresh registry starts every kind at 1.
type IDRegistry struct {
	mu   sync.Mutex
	next map[string]int
}

// NewIDRegistry creates an empty registry
func NewIDRegistry() *IDRegistry {
	return &IDRegistry{next: make(map[string]int)}
}

// Next advances the counter for kind and returns the new value
func (r *IDRegistry) Next(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next[kind]++
	return r.next[kind]
}

// Peek returns the last id handed out for kind (0 if none)
func (r *IDRegistry) Peek(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next[kind]
}

// Reset forgets every counter
func (r *IDRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = make(map[string]int)
}

var defaultRegistry = NewIDRegistry()

// DefaultRegistry returns the process-wide registry used when no other is given
func DefaultRegistry() *IDRegistry {
	return defaultRegistry
}

// NextID draws from the process-wide registry
func NextID(kind string) int {
	return defaultRegistry.Next(kind)
}

// ResetIDs resets the process-wide registry. Only meant for tests that
// construct everything after the reset.
func ResetIDs() {
	defaultRegistry.Reset()
}

type identity struct {
	id int
}

func (i *identity) ID() int         { return i.id }
func (i *identity) SetID(id int)    { i.id = id }
func (i *identity) Version() string { return Version }

// IDsOf collects the ids of the given entities
func IDsOf[T Identifiable](items ...T) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID()
	}
	return ids
}
