package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/burnt-labs/dao-dao-indexer/internal/store"
)

// WasmCodeRegistry resolves symbolic code-key names (e.g. "cl-vault") to the
// sets of on-chain code IDs the external wasm-code tracker has learned for
// them. Lookups are cheap; Refresh re-reads the backing table so that
// mappings learned mid-run apply to subsequent batches.
type WasmCodeRegistry interface {
	// CodeIDs returns the code-ID set for a code-key name; nil when unknown
	CodeIDs(key string) []uint64

	// CodeIDsForKeys returns the union of the code-ID sets of several names
	CodeIDsForKeys(keys []string) map[uint64]struct{}

	// Refresh re-reads the mapping from the store
	Refresh(ctx context.Context) error
}

type wasmCodeRegistry struct {
	store store.Store

	mu    sync.RWMutex
	codes map[string][]uint64
}

// Load builds a registry from the store, seeded with any statically
// configured mappings. Seed entries are merged under the stored ones so a
// chain can bootstrap before the tracker has written anything.
func Load(ctx context.Context, st store.Store, seed map[string][]uint64) (WasmCodeRegistry, error) {
	r := &wasmCodeRegistry{
		store: st,
		codes: make(map[string][]uint64),
	}
	for key, ids := range seed {
		r.codes[key] = append([]uint64(nil), ids...)
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load wasm code registry: %w", err)
	}
	return r, nil
}

func (r *wasmCodeRegistry) Refresh(ctx context.Context) error {
	stored, err := r.store.GetWasmCodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh wasm codes: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, ids := range stored {
		merged := make(map[uint64]struct{}, len(ids)+len(r.codes[key]))
		for _, id := range r.codes[key] {
			merged[id] = struct{}{}
		}
		for _, id := range ids {
			merged[id] = struct{}{}
		}
		out := make([]uint64, 0, len(merged))
		for id := range merged {
			out = append(out, id)
		}
		r.codes[key] = out
	}
	return nil
}

func (r *wasmCodeRegistry) CodeIDs(key string) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids, ok := r.codes[key]
	if !ok {
		return nil
	}
	return append([]uint64(nil), ids...)
}

func (r *wasmCodeRegistry) CodeIDsForKeys(keys []string) map[uint64]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	union := make(map[uint64]struct{})
	for _, key := range keys {
		for _, id := range r.codes[key] {
			union[id] = struct{}{}
		}
	}
	return union
}
