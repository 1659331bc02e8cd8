package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/store/schema"
)

// MemoryStore is an in-memory Store used by tests and local development. It
// honors the same upsert and conflict semantics as the PostgreSQL store.
type MemoryStore struct {
	mu sync.RWMutex

	blocks          map[uint64]schema.Block
	contracts       map[string]schema.Contract
	events          map[string]schema.WasmStateEvent
	transformations map[string]schema.WasmStateEventTransformation
	state           *schema.IndexerState
	wasmCodes       map[string][]uint64
	nextEventID     uint64
	nextTransfoID   uint64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks:          make(map[uint64]schema.Block),
		contracts:       make(map[string]schema.Contract),
		events:          make(map[string]schema.WasmStateEvent),
		transformations: make(map[string]schema.WasmStateEventTransformation),
		wasmCodes:       make(map[string][]uint64),
	}
}

func stateEventKey(blockHeight uint64, contractAddress, key string) string {
	return fmt.Sprintf("%d|%s|%s", blockHeight, contractAddress, key)
}

func transformationKey(contractAddress, name string, blockHeight uint64) string {
	return fmt.Sprintf("%s|%s|%d", contractAddress, name, blockHeight)
}

func (s *MemoryStore) Migrate(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) EnsureBlocks(ctx context.Context, blocks []schema.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range blocks {
		if _, ok := s.blocks[b.Height]; !ok {
			s.blocks[b.Height] = b
		}
	}
	return nil
}

func (s *MemoryStore) UpsertContracts(ctx context.Context, contracts []schema.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contracts {
		if existing, ok := s.contracts[c.Address]; ok {
			existing.CodeID = c.CodeID
			existing.Admin = c.Admin
			existing.Creator = c.Creator
			existing.Label = c.Label
			s.contracts[c.Address] = existing
		} else {
			s.contracts[c.Address] = c
		}
	}
	return nil
}

func (s *MemoryStore) EnsureContractsExist(ctx context.Context, contracts []schema.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contracts {
		if _, ok := s.contracts[c.Address]; !ok {
			s.contracts[c.Address] = c
		}
	}
	return nil
}

func (s *MemoryStore) GetContractsByAddresses(ctx context.Context, addresses []string) ([]schema.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contracts := make([]schema.Contract, 0, len(addresses))
	for _, addr := range addresses {
		if c, ok := s.contracts[addr]; ok {
			contracts = append(contracts, c)
		}
	}
	return contracts, nil
}

func (s *MemoryStore) UpdateContractCodeIDs(ctx context.Context, codeIDs map[string]uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, codeID := range codeIDs {
		if c, ok := s.contracts[addr]; ok {
			c.CodeID = codeID
			s.contracts[addr] = c
		}
	}
	return nil
}

func (s *MemoryStore) UpsertStateEvents(ctx context.Context, events []schema.WasmStateEvent) ([]schema.WasmStateEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	persisted := make([]schema.WasmStateEvent, 0, len(events))
	for _, e := range events {
		k := stateEventKey(e.BlockHeight, e.ContractAddress, e.Key)
		if existing, ok := s.events[k]; ok {
			existing.Value = e.Value
			existing.ValueJSON = e.ValueJSON
			existing.Delete = e.Delete
			s.events[k] = existing
			persisted = append(persisted, existing)
		} else {
			s.nextEventID++
			e.ID = s.nextEventID
			s.events[k] = e
			persisted = append(persisted, e)
		}
	}
	return persisted, nil
}

func (s *MemoryStore) UpsertTransformations(ctx context.Context, rows []schema.WasmStateEventTransformation) ([]schema.WasmStateEventTransformation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	persisted := make([]schema.WasmStateEventTransformation, 0, len(rows))
	for _, r := range rows {
		k := transformationKey(r.ContractAddress, r.Name, r.BlockHeight)
		if existing, ok := s.transformations[k]; ok {
			existing.Value = r.Value
			s.transformations[k] = existing
			persisted = append(persisted, existing)
		} else {
			s.nextTransfoID++
			r.ID = s.nextTransfoID
			s.transformations[k] = r
			persisted = append(persisted, r)
		}
	}
	return persisted, nil
}

func (s *MemoryStore) GetIndexerState(ctx context.Context) (*schema.IndexerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, domain.ErrIndexerStateMissing
	}
	state := *s.state
	return &state, nil
}

func (s *MemoryStore) EnsureIndexerState(ctx context.Context, chainID string) (*schema.IndexerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		s.state = &schema.IndexerState{
			ID:      schema.IndexerStateID,
			ChainID: chainID,
		}
	}
	state := *s.state
	return &state, nil
}

func (s *MemoryStore) AdvanceIndexerState(ctx context.Context, lastWasmHeight, latestHeight, latestTimeMs uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return domain.ErrIndexerStateMissing
	}
	s.state.LastWasmBlockHeightExported = max(s.state.LastWasmBlockHeightExported, lastWasmHeight)
	s.state.LatestBlockHeight = max(s.state.LatestBlockHeight, latestHeight)
	s.state.LatestBlockTimeUnixMs = max(s.state.LatestBlockTimeUnixMs, latestTimeMs)
	return nil
}

func (s *MemoryStore) GetWasmCodes(ctx context.Context) (map[string][]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string][]uint64, len(s.wasmCodes))
	for k, v := range s.wasmCodes {
		result[k] = append([]uint64(nil), v...)
	}
	return result, nil
}

// SeedWasmCodes loads code-key mappings into the in-memory store
func (s *MemoryStore) SeedWasmCodes(codes map[string][]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range codes {
		s.wasmCodes[k] = append([]uint64(nil), v...)
	}
}

// Blocks returns a snapshot of all block rows, for tests
func (s *MemoryStore) Blocks() map[uint64]schema.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]schema.Block, len(s.blocks))
	for k, v := range s.blocks {
		out[k] = v
	}
	return out
}

// Contracts returns a snapshot of all contract rows, for tests
func (s *MemoryStore) Contracts() map[string]schema.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]schema.Contract, len(s.contracts))
	for k, v := range s.contracts {
		out[k] = v
	}
	return out
}

// StateEvents returns a snapshot of all state event rows, for tests
func (s *MemoryStore) StateEvents() []schema.WasmStateEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.WasmStateEvent, 0, len(s.events))
	for _, v := range s.events {
		out = append(out, v)
	}
	return out
}

// Transformations returns a snapshot of all derived rows, for tests
func (s *MemoryStore) Transformations() []schema.WasmStateEventTransformation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.WasmStateEventTransformation, 0, len(s.transformations))
	for _, v := range s.transformations {
		out = append(out, v)
	}
	return out
}
