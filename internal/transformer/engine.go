package transformer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/logger"
	"github.com/burnt-labs/dao-dao-indexer/internal/registry"
	"github.com/burnt-labs/dao-dao-indexer/internal/store"
	"github.com/burnt-labs/dao-dao-indexer/internal/store/schema"
)

const (
	// persistAttempts is the total number of tries, the first call included
	persistAttempts        = 3
	persistInitialInterval = 100 * time.Millisecond
)

// Engine evaluates registered rules against a batch of resolved state events
// and persists the derived rows
type Engine struct {
	store    store.Store
	registry *Registry
	codes    registry.WasmCodeRegistry
}

// NewEngine creates a transformer engine
func NewEngine(st store.Store, rules *Registry, codes registry.WasmCodeRegistry) *Engine {
	return &Engine{
		store:    st,
		registry: rules,
		codes:    codes,
	}
}

// Run evaluates all rules against the batch and upserts the derived rows.
// Duplicate (contract, name, height) outputs collapse last-write-wins before
// persistence; persisted rows missing their contract are dropped and logged.
func (e *Engine) Run(ctx context.Context, events []domain.StateEvent) ([]schema.WasmStateEventTransformation, error) {
	rows := e.derive(ctx, events)
	if len(rows) == 0 {
		return nil, nil
	}

	var persisted []schema.WasmStateEventTransformation
	operation := func() error {
		var err error
		persisted, err = e.store.UpsertTransformations(ctx, rows)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = persistInitialInterval
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, persistAttempts-1), ctx)); err != nil {
		return nil, fmt.Errorf("failed to persist transformations: %w", err)
	}

	return e.joinContracts(ctx, persisted)
}

// derive evaluates every rule against every eligible event
func (e *Engine) derive(ctx context.Context, events []domain.StateEvent) []schema.WasmStateEventTransformation {
	index := make(map[string]int)
	var rows []schema.WasmStateEventTransformation

	for _, rule := range e.registry.Rules() {
		var codeIDs map[uint64]struct{}
		if len(rule.CodeIDsKeys) > 0 {
			codeIDs = e.codes.CodeIDsForKeys(rule.CodeIDsKeys)
		}

		for _, event := range events {
			if codeIDs != nil {
				if _, ok := codeIDs[event.CodeID]; !ok {
					continue
				}
			}
			if rule.Matches != nil && !rule.Matches(event) {
				continue
			}

			value, err := rule.Extract(event)
			if err != nil {
				logger.WarnCtx(ctx, "transformer extraction failed",
					zap.String("name", rule.Name),
					zap.String("contract", event.ContractAddress),
					zap.Uint64("height", event.BlockHeight),
					zap.Error(err))
				continue
			}

			row := schema.WasmStateEventTransformation{
				ContractAddress: event.ContractAddress,
				Name:            rule.Name,
				BlockHeight:     event.BlockHeight,
				Value:           datatypes.JSON(value),
			}
			key := fmt.Sprintf("%s|%s|%d", row.ContractAddress, row.Name, row.BlockHeight)
			if i, ok := index[key]; ok {
				rows[i] = row
			} else {
				index[key] = len(rows)
				rows = append(rows, row)
			}
		}
	}

	return rows
}

// joinContracts drops persisted rows whose contract row has disappeared
func (e *Engine) joinContracts(ctx context.Context, rows []schema.WasmStateEventTransformation) ([]schema.WasmStateEventTransformation, error) {
	addresses := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.ContractAddress]; !ok {
			seen[row.ContractAddress] = struct{}{}
			addresses = append(addresses, row.ContractAddress)
		}
	}

	contracts, err := e.store.GetContractsByAddresses(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("failed to join transformation contracts: %w", err)
	}
	known := make(map[string]struct{}, len(contracts))
	for _, c := range contracts {
		known[c.Address] = struct{}{}
	}

	kept := rows[:0:0]
	for _, row := range rows {
		if _, ok := known[row.ContractAddress]; !ok {
			logger.WarnCtx(ctx, "dropping transformation for missing contract",
				zap.String("contract", row.ContractAddress),
				zap.String("name", row.Name),
				zap.Uint64("height", row.BlockHeight))
			continue
		}
		kept = append(kept, row)
	}
	return kept, nil
}
