package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/armon/go-radix"
)

// Opener turns a locator into a byte stream.
type Opener interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, locator string) (io.ReadCloser, error)

func (f OpenerFunc) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	return f(ctx, locator)
}

// Resolver routes locators to openers by longest registered prefix.
type Resolver struct {
	mu   sync.RWMutex
	tree *radix.Tree
}

func NewResolver() *Resolver {
	return &Resolver{tree: radix.New()}
}

// Register binds prefix to o, replacing any previous binding.
func (r *Resolver) Register(prefix string, o Opener) error {
	if prefix == "" {
		return ErrEmptyPrefix
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree.Insert(prefix, o)
	return nil
}

// Open implements Opener.
func (r *Resolver) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	r.mu.RLock()
	_, v, found := r.tree.LongestPrefix(locator)
	r.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoOpener, locator)
	}
	return v.(Opener).Open(ctx, locator)
}

// Prefixes lists registered prefixes in lexical order.
func (r *Resolver) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, r.tree.Len())
	r.tree.Walk(func(key string, _ interface{}) bool {
		out = append(out, key)
		return false
	})
	return out
}
