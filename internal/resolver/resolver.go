package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/logger"
	"github.com/burnt-labs/dao-dao-indexer/internal/providers/cosmos"
)

const (
	// cacheSize bounds the process-wide address → code ID cache
	cacheSize = 1000
	// resolveTimeout bounds a single RPC resolution including retries
	resolveTimeout = 10 * time.Second
)

// Resolver maps contract addresses to code IDs through the node RPC, with a
// bounded LRU cache. Resolution never fails the pipeline: any terminal error
// caches and returns the unknown sentinel 0, leaving the contract eligible
// for back-fill on a later batch.
type Resolver struct {
	client cosmos.Client
	cache  *lru.Cache[string, uint64]
}

// New creates a resolver over the given LCD client
func New(client cosmos.Client) (*Resolver, error) {
	cache, err := lru.New[string, uint64](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		client: client,
		cache:  cache,
	}, nil
}

// Resolve returns the code ID for a contract address, consulting the cache
// first. Unknown contracts and exhausted retries resolve to 0.
func (r *Resolver) Resolve(ctx context.Context, address string) uint64 {
	if codeID, ok := r.cache.Get(address); ok {
		return codeID
	}
	return r.resolveRemote(ctx, address)
}

// resolveRemote queries the node and caches the outcome. The HTTP layer
// retries transient failures with exponential backoff before this returns.
func (r *Resolver) resolveRemote(ctx context.Context, address string) uint64 {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	meta, err := r.client.ContractInfo(ctx, address)
	if err != nil {
		if !errors.Is(err, domain.ErrContractNotFound) {
			logger.WarnCtx(ctx, "code id resolution failed, caching unknown",
				zap.String("address", address), zap.Error(err))
		}
		r.cache.Add(address, domain.CodeIDUnknown)
		return domain.CodeIDUnknown
	}

	r.cache.Add(address, meta.CodeID)
	return meta.CodeID
}

// ResolveMany resolves a set of addresses with bounded concurrency. When
// refresh is true, cached unknown entries are re-queried so that back-fill
// gets a fresh answer; cached positive code IDs are always trusted (code IDs
// only change through migrations, which arrive as lifecycle events).
func (r *Resolver) ResolveMany(ctx context.Context, addresses []string, concurrency int, refresh bool) map[string]uint64 {
	if len(addresses) == 0 {
		return map[string]uint64{}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	results := make(map[string]uint64, len(addresses))

	pool := pond.NewPool(concurrency, pond.WithContext(ctx))
	for _, address := range addresses {
		pool.Submit(func() {
			var codeID uint64
			cached, ok := r.cache.Get(address)
			switch {
			case ok && (cached != domain.CodeIDUnknown || !refresh):
				codeID = cached
			default:
				codeID = r.resolveRemote(ctx, address)
			}
			mu.Lock()
			results[address] = codeID
			mu.Unlock()
		})
	}
	pool.StopAndWait()

	return results
}
