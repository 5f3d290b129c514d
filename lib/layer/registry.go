// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/opendcc/liveshare/lib/edit"
)

// AnonymousPrefix starts the identifier of every anonymous layer.
// Anonymous layers exist only in the process that created them and are
// never staged for transfer.
const AnonymousPrefix = "anon:"

// Notice reports the layers changed by one mutation or one change
// block. Layers are listed in the order they first changed.
type Notice struct {
	Layers []string
}

// Registry holds the open layers of one process and fans their
// mutations out to interceptors and change listeners.
//
// Interceptors receive every primitive mutation as an edit.Record, in
// order, synchronously on the mutating goroutine. Change listeners
// receive one Notice per mutation, or one per outermost ChangeBlock.
//
// Registration methods are safe for concurrent use. Mutations, and
// therefore all callbacks, happen on the goroutine that owns the
// layers.
type Registry struct {
	mu           sync.Mutex
	layers       map[string]*Layer
	interceptors []registration[func(edit.Record)]
	listeners    []registration[func(Notice)]
	nextID       int
	blockDepth   int
	pending      []string
}

type registration[F any] struct {
	id int
	fn F
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{layers: make(map[string]*Layer)}
}

// Open returns the layer with id, creating an empty one if none is
// open.
func (r *Registry) Open(id string) *Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.layers[id]; ok {
		return l
	}
	l := New(id)
	l.registry = r
	r.layers[id] = l
	return l
}

// Add places a standalone layer (one built with New or loaded from a
// snapshot) under the registry. It returns false if a layer with the
// same id is already open or l already belongs to a registry.
func (r *Registry) Add(l *Layer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.layers[l.id]; exists || l.registry != nil {
		return false
	}
	l.registry = r
	r.layers[l.id] = l
	return true
}

// CreateAnonymous creates a new anonymous layer. tag, if non-empty, is
// appended to the generated identifier for readability.
func (r *Registry) CreateAnonymous(tag string) *Layer {
	id := AnonymousPrefix + uuid.NewString()
	if tag != "" {
		id += ":" + tag
	}
	return r.Open(id)
}

// Find returns the open layer with id, or nil.
func (r *Registry) Find(id string) *Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layers[id]
}

// Close removes the layer with id from the registry. Later mutations on
// the removed layer are not reported.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.layers[id]; ok {
		l.registry = nil
		delete(r.layers, id)
	}
}

// Layers returns the open layers sorted by identifier.
func (r *Registry) Layers() []*Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	layers := make([]*Layer, 0, len(r.layers))
	for _, l := range r.layers {
		layers = append(layers, l)
	}
	slices.SortFunc(layers, func(a, b *Layer) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return layers
}

// RegisterInterceptor adds fn to the mutation interceptors and returns
// a function that removes it.
func (r *Registry) RegisterInterceptor(fn func(edit.Record)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.interceptors = append(r.interceptors, registration[func(edit.Record)]{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.interceptors = slices.DeleteFunc(r.interceptors, func(reg registration[func(edit.Record)]) bool {
			return reg.id == id
		})
	}
}

// OnChanged adds fn to the change listeners and returns a function that
// removes it.
func (r *Registry) OnChanged(fn func(Notice)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, registration[func(Notice)]{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.listeners = slices.DeleteFunc(r.listeners, func(reg registration[func(Notice)]) bool {
			return reg.id == id
		})
	}
}

// ChangeBlock runs fn with change notices deferred: however many
// mutations fn performs, listeners receive a single Notice when the
// outermost block closes. Interceptors still see each mutation as it
// happens. The notice is sent even if fn returns an error, since the
// mutations it performed before failing are not rolled back.
func (r *Registry) ChangeBlock(fn func() error) error {
	r.mu.Lock()
	r.blockDepth++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.blockDepth--
		var notice Notice
		if r.blockDepth == 0 && len(r.pending) > 0 {
			notice.Layers = r.pending
			r.pending = nil
		}
		listeners := slices.Clone(r.listeners)
		r.mu.Unlock()
		if len(notice.Layers) > 0 {
			for _, listener := range listeners {
				listener.fn(notice)
			}
		}
	}()
	return fn()
}

// didChange reports one mutation of l. record is nil for whole-content
// replacement, which interceptors do not see.
func (r *Registry) didChange(l *Layer, record edit.Record) {
	r.mu.Lock()
	interceptors := slices.Clone(r.interceptors)
	var listeners []registration[func(Notice)]
	if r.blockDepth > 0 {
		if !slices.Contains(r.pending, l.id) {
			r.pending = append(r.pending, l.id)
		}
	} else {
		listeners = slices.Clone(r.listeners)
	}
	r.mu.Unlock()

	if record != nil {
		for _, interceptor := range interceptors {
			interceptor.fn(record)
		}
	}
	for _, listener := range listeners {
		listener.fn(Notice{Layers: []string{l.id}})
	}
}
