package generator

import (
	"math/rand/v2"
	"sort"
)

// WorkingSet caches the live entities a generator may mutate. An id present
// always refers to an entity in a non-terminal status; generators Remove it
// on the transition that ends it. Not safe for concurrent use.
type WorkingSet[V any] struct {
	items map[string]V
	ids   []string
	pos   map[string]int
}

func NewWorkingSet[V any]() *WorkingSet[V] {
	return &WorkingSet[V]{items: make(map[string]V), pos: make(map[string]int)}
}

func (w *WorkingSet[V]) Put(id string, v V) {
	if _, ok := w.items[id]; !ok {
		w.pos[id] = len(w.ids)
		w.ids = append(w.ids, id)
	}
	w.items[id] = v
}

func (w *WorkingSet[V]) Get(id string) (V, bool) {
	v, ok := w.items[id]
	return v, ok
}

func (w *WorkingSet[V]) Remove(id string) {
	i, ok := w.pos[id]
	if !ok {
		return
	}
	last := len(w.ids) - 1
	w.ids[i] = w.ids[last]
	w.pos[w.ids[i]] = i
	w.ids = w.ids[:last]
	delete(w.pos, id)
	delete(w.items, id)
}

func (w *WorkingSet[V]) Len() int { return len(w.ids) }

// Random picks an entry uniformly. ok is false when the set is empty.
func (w *WorkingSet[V]) Random(r *rand.Rand) (id string, v V, ok bool) {
	if len(w.ids) == 0 {
		return "", v, false
	}
	id = w.ids[r.IntN(len(w.ids))]
	return id, w.items[id], true
}

// IDs returns the ids in sorted order.
func (w *WorkingSet[V]) IDs() []string {
	out := append([]string(nil), w.ids...)
	sort.Strings(out)
	return out
}

// Reset empties the set.
func (w *WorkingSet[V]) Reset() {
	clear(w.items)
	clear(w.pos)
	w.ids = w.ids[:0]
}
