package compiler

import (
	"context"
	"sync"
)

// Node is one compiled output.
type Node struct {
	Buffer []byte
	Hash   string
}

// NodeState indexes the latest nodes by kind and variant.
type NodeState map[string]map[string]*Node

// Get returns the node for kind and variant, or nil.
func (s NodeState) Get(kind, variant string) *Node {
	variants, ok := s[kind]
	if !ok {
		return nil
	}
	return variants[variant]
}

// Clone copies the index. Nodes are shared; they are never mutated after
// being published.
func (s NodeState) Clone() NodeState {
	out := make(NodeState, len(s))
	for kind, variants := range s {
		m := make(map[string]*Node, len(variants))
		for name, node := range variants {
			m[name] = node
		}
		out[kind] = m
	}
	return out
}

// Listener receives compiler lifecycle events. Events are delivered from a
// single goroutine in emission order, so implementations must not block.
type Listener interface {
	OnError(err error)
	OnChange(kind, variant string, state NodeState)
}

// Compiler is an incremental asset compiler.
type Compiler interface {
	// Subscribe registers l and returns a function that removes it.
	Subscribe(l Listener) (unsubscribe func())

	// Run builds once and then rebuilds on source changes until ctx ends.
	Run(ctx context.Context) error

	Manifest(ctx context.Context) (*Node, error)
	ServiceWorker(ctx context.Context) (*Node, error)
	Script(ctx context.Context, name string) (*Node, error)
	Style(ctx context.Context) (*Node, error)
	Document(ctx context.Context, url string) (*Node, error)
	Asset(ctx context.Context, name string) (*Node, error)
}

// Artifact kinds and default variants emitted by the bundler.
const (
	KindManifest      = "manifest"
	KindAssets        = "assets"
	KindServiceWorker = "serviceWorker"
	KindScript        = "script"
	KindStyle         = "style"
	KindDocument      = "document"

	VariantBundle  = "bundle"
	VariantDefault = "default"
)

// Hub fans compiler events out to subscribers. The zero value is ready to
// use.
type Hub struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener
}

// Subscribe registers l.
func (h *Hub) Subscribe(l Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners == nil {
		h.listeners = make(map[int]Listener)
	}
	id := h.next
	h.next++
	h.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// EmitError delivers err to every listener in subscription order.
func (h *Hub) EmitError(err error) {
	for _, l := range h.snapshot() {
		l.OnError(err)
	}
}

// EmitChange delivers a change to every listener in subscription order.
func (h *Hub) EmitChange(kind, variant string, state NodeState) {
	for _, l := range h.snapshot() {
		l.OnChange(kind, variant, state)
	}
}

func (h *Hub) snapshot() []Listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Listener, 0, len(h.listeners))
	for id := 0; id < h.next; id++ {
		if l, ok := h.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}
