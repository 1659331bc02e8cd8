package exporter

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/burnt-labs/dao-dao-indexer/internal/allowlist"
	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/logger"
	"github.com/burnt-labs/dao-dao-indexer/internal/messaging"
	"github.com/burnt-labs/dao-dao-indexer/internal/registry"
	"github.com/burnt-labs/dao-dao-indexer/internal/resolver"
	"github.com/burnt-labs/dao-dao-indexer/internal/store"
	"github.com/burnt-labs/dao-dao-indexer/internal/store/schema"
	"github.com/burnt-labs/dao-dao-indexer/internal/transformer"
	"github.com/burnt-labs/dao-dao-indexer/internal/wasm"
	"github.com/burnt-labs/dao-dao-indexer/internal/webhook"
)

const (
	// persistAttempts is the total number of tries, the first call included
	persistAttempts        = 3
	persistInitialInterval = 100 * time.Millisecond
)

// Config holds the processor's per-chain settings
type Config struct {
	ChainID string
	// SendWebhooks enables the webhook enqueue boundary
	SendWebhooks bool
	// ResolverConcurrency bounds parallel code-ID resolutions per batch
	ResolverConcurrency int
	// Allowlist holds this chain's state-event allowlist rules
	Allowlist []allowlist.Rule
}

// Processor runs the export pipeline for one batch of trace records at a
// time. A single processor instance owns the database; ordering across
// batches is sequential by construction.
type Processor struct {
	config    Config
	store     store.Store
	matcher   *wasm.Matcher
	resolver  *resolver.Resolver
	codes     registry.WasmCodeRegistry
	engine    *transformer.Engine
	publisher messaging.Publisher
}

// NewProcessor wires the pipeline. publisher may be nil when no queue is
// configured; the webhook and tracker enqueues are then skipped.
func NewProcessor(
	cfg Config,
	st store.Store,
	matcher *wasm.Matcher,
	res *resolver.Resolver,
	codes registry.WasmCodeRegistry,
	engine *transformer.Engine,
	publisher messaging.Publisher,
) *Processor {
	if cfg.ResolverConcurrency <= 0 {
		cfg.ResolverConcurrency = 10
	}
	return &Processor{
		config:    cfg,
		store:     st,
		matcher:   matcher,
		resolver:  res,
		codes:     codes,
		engine:    engine,
		publisher: publisher,
	}
}

// ExportBatch processes one batch of trace records to completion: persist
// rows, run transformers, enqueue side effects, advance the watermark. Any
// error leaves the watermark untouched; re-running the batch is safe because
// every write is an upsert.
func (p *Processor) ExportBatch(ctx context.Context, records []domain.TraceRecord) error {
	contractEvents, stateEvents := p.matcher.MatchBatch(records)
	if len(contractEvents) == 0 && len(stateEvents) == 0 {
		return nil
	}

	preState, err := p.store.GetIndexerState(ctx)
	if err != nil {
		return fmt.Errorf("failed to read indexer state: %w", err)
	}

	if err := p.store.EnsureBlocks(ctx, collectBlocks(contractEvents, stateEvents)); err != nil {
		return err
	}

	// The watermark tracks the highest block the batch contained, so take
	// the maximum before the allowlist thins the state events out.
	maxHeight, maxTime := maxBlock(contractEvents, stateEvents)

	var persistedEvents []schema.WasmStateEvent
	operation := func() error {
		persisted, surviving, err := p.persistContractsAndEvents(ctx, contractEvents, stateEvents)
		if err != nil {
			return err
		}
		persistedEvents, stateEvents = persisted, surviving
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = persistInitialInterval
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, persistAttempts-1), ctx)); err != nil {
		return fmt.Errorf("failed to persist batch: %w", err)
	}

	// Enqueue webhooks before advancing the watermark: a crash in between
	// re-enqueues on restart, and downstream delivery dedupes.
	if err := p.enqueueWebhooks(ctx, preState.LastWasmBlockHeightExported, stateEvents); err != nil {
		return err
	}

	if _, err := p.engine.Run(ctx, transformable(stateEvents)); err != nil {
		return err
	}

	if err := p.enqueueCodeTrackerJob(ctx, contractEvents, stateEvents); err != nil {
		return err
	}

	if err := p.store.AdvanceIndexerState(ctx, maxHeight, maxHeight, maxTime); err != nil {
		return err
	}

	logger.DebugCtx(ctx, "exported batch",
		zap.Int("contract_events", len(contractEvents)),
		zap.Int("state_events", len(persistedEvents)),
		zap.Uint64("max_height", maxHeight))
	return nil
}

// persistContractsAndEvents runs the contract and event sinks in dependency
// order: contracts must exist and carry their code IDs before the events
// that reference them land.
// It returns the persisted event rows, joined to their contracts, and the
// parsed state events that passed the allowlist filter. The contract join
// drops only persisted rows; the parsed events are not thinned by it.
func (p *Processor) persistContractsAndEvents(
	ctx context.Context,
	contractEvents []domain.ContractEvent,
	stateEvents []domain.StateEvent,
) ([]schema.WasmStateEvent, []domain.StateEvent, error) {
	// Contract sink A: lifecycle events carry full metadata.
	if err := p.store.UpsertContracts(ctx, contractRows(contractEvents)); err != nil {
		return nil, nil, err
	}

	// Contract sink B: every state-event address needs a contract row before
	// its events reference it.
	if err := p.store.EnsureContractsExist(ctx, placeholderRows(stateEvents)); err != nil {
		return nil, nil, err
	}

	contracts, err := p.backfillCodeIDs(ctx, stateEvents)
	if err != nil {
		return nil, nil, err
	}

	// Stamp each parsed event with its contract's code ID.
	for i := range stateEvents {
		if c, ok := contracts[stateEvents[i].ContractAddress]; ok {
			stateEvents[i].CodeID = c.CodeID
		}
	}

	// The allowlist judges events with their post-resolution code IDs;
	// still-unknown code IDs pass and are persisted with code ID 0.
	filter := allowlist.New(p.config.Allowlist, p.codes)
	stateEvents = filter.Apply(stateEvents)

	persisted, err := p.store.UpsertStateEvents(ctx, eventRows(stateEvents))
	if err != nil {
		return nil, nil, err
	}

	// Join persisted rows back to their contracts; a contract deleted
	// between insert and re-read drops its events.
	persisted, err = p.joinContracts(ctx, persisted, contracts)
	if err != nil {
		return nil, nil, err
	}

	return persisted, stateEvents, nil
}

// backfillCodeIDs resolves code IDs for contracts still at the unknown
// sentinel, with bounded parallelism, and returns the final contract set
// keyed by address.
func (p *Processor) backfillCodeIDs(ctx context.Context, stateEvents []domain.StateEvent) (map[string]schema.Contract, error) {
	addresses := eventAddresses(stateEvents)

	contracts, err := p.store.GetContractsByAddresses(ctx, addresses)
	if err != nil {
		return nil, err
	}

	var unknown []string
	for _, c := range contracts {
		if c.CodeID == domain.CodeIDUnknown {
			unknown = append(unknown, c.Address)
		}
	}

	if len(unknown) > 0 {
		resolved := p.resolver.ResolveMany(ctx, unknown, p.config.ResolverConcurrency, true)
		updates := make(map[string]uint64)
		for address, codeID := range resolved {
			if codeID != domain.CodeIDUnknown {
				updates[address] = codeID
			}
		}
		if len(updates) > 0 {
			if err := p.store.UpdateContractCodeIDs(ctx, updates); err != nil {
				return nil, err
			}
			contracts, err = p.store.GetContractsByAddresses(ctx, addresses)
			if err != nil {
				return nil, err
			}
		}
	}

	byAddress := make(map[string]schema.Contract, len(contracts))
	for _, c := range contracts {
		byAddress[c.Address] = c
	}
	return byAddress, nil
}

// joinContracts drops persisted rows whose contract row has disappeared
func (p *Processor) joinContracts(
	ctx context.Context,
	rows []schema.WasmStateEvent,
	contracts map[string]schema.Contract,
) ([]schema.WasmStateEvent, error) {
	kept := rows[:0:0]
	for _, row := range rows {
		if _, ok := contracts[row.ContractAddress]; !ok {
			// Not in the batch's contract set; one direct lookup before
			// giving up on the row.
			fetched, err := p.store.GetContractsByAddresses(ctx, []string{row.ContractAddress})
			if err != nil {
				return nil, err
			}
			if len(fetched) == 0 {
				logger.WarnCtx(ctx, "dropping state event for missing contract",
					zap.String("contract", row.ContractAddress),
					zap.Uint64("height", row.BlockHeight))
				continue
			}
			contracts[row.ContractAddress] = fetched[0]
		}
		kept = append(kept, row)
	}
	return kept, nil
}

// enqueueWebhooks enqueues state events at or above the pre-batch watermark.
// The inclusive bound catches a block re-split across batches.
func (p *Processor) enqueueWebhooks(ctx context.Context, preBatchWatermark uint64, stateEvents []domain.StateEvent) error {
	if p.publisher == nil || !p.config.SendWebhooks {
		return nil
	}

	var payloads []webhook.StateEventPayload
	for _, event := range stateEvents {
		if event.BlockHeight >= preBatchWatermark {
			payloads = append(payloads, webhook.FromStateEvent(p.config.ChainID, event))
		}
	}
	if len(payloads) == 0 {
		return nil
	}

	if err := p.publisher.PublishWebhookEvents(ctx, payloads); err != nil {
		return fmt.Errorf("failed to enqueue webhook events: %w", err)
	}
	return nil
}

// enqueueCodeTrackerJob hands new contract events to the external tracker
func (p *Processor) enqueueCodeTrackerJob(ctx context.Context, contractEvents []domain.ContractEvent, stateEvents []domain.StateEvent) error {
	if p.publisher == nil || len(contractEvents) == 0 {
		return nil
	}

	job := messaging.CodeTrackerJob{
		BlockHeight:       contractEvents[0].BlockHeight,
		ContractEvents:    contractEvents,
		StateEventUpdates: stateEvents,
	}
	if err := p.publisher.PublishCodeTrackerJob(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue code tracker job: %w", err)
	}
	return nil
}

// collectBlocks builds one block row per distinct height, first-found time
func collectBlocks(contractEvents []domain.ContractEvent, stateEvents []domain.StateEvent) []schema.Block {
	seen := make(map[uint64]struct{})
	var blocks []schema.Block
	add := func(height, timeMs uint64) {
		if _, ok := seen[height]; ok {
			return
		}
		seen[height] = struct{}{}
		blocks = append(blocks, schema.Block{Height: height, TimeUnixMs: timeMs})
	}
	for _, e := range contractEvents {
		add(e.BlockHeight, e.BlockTimeUnixMs)
	}
	for _, e := range stateEvents {
		add(e.BlockHeight, e.BlockTimeUnixMs)
	}
	return blocks
}

// contractRows maps lifecycle events to full contract rows
func contractRows(events []domain.ContractEvent) []schema.Contract {
	rows := make([]schema.Contract, 0, len(events))
	for _, e := range events {
		rows = append(rows, schema.Contract{
			Address:                       e.Address,
			CodeID:                        e.CodeID,
			Admin:                         optional(e.Admin),
			Creator:                       optional(e.Creator),
			Label:                         optional(e.Label),
			InstantiatedAtBlockHeight:     e.BlockHeight,
			InstantiatedAtBlockTimeUnixMs: e.BlockTimeUnixMs,
			InstantiatedAtBlockTimestamp:  time.UnixMilli(int64(e.BlockTimeUnixMs)).UTC(),
		})
	}
	return rows
}

// placeholderRows maps state events to unknown-code contract rows, taking
// instantiation fields from each address's earliest event in the batch
func placeholderRows(events []domain.StateEvent) []schema.Contract {
	earliest := make(map[string]domain.StateEvent)
	for _, e := range events {
		if cur, ok := earliest[e.ContractAddress]; !ok || e.BlockHeight < cur.BlockHeight {
			earliest[e.ContractAddress] = e
		}
	}
	rows := make([]schema.Contract, 0, len(earliest))
	for _, e := range earliest {
		rows = append(rows, schema.Contract{
			Address:                       e.ContractAddress,
			CodeID:                        domain.CodeIDUnknown,
			InstantiatedAtBlockHeight:     e.BlockHeight,
			InstantiatedAtBlockTimeUnixMs: e.BlockTimeUnixMs,
			InstantiatedAtBlockTimestamp:  time.UnixMilli(int64(e.BlockTimeUnixMs)).UTC(),
		})
	}
	return rows
}

// eventRows maps parsed state events to their table rows
func eventRows(events []domain.StateEvent) []schema.WasmStateEvent {
	rows := make([]schema.WasmStateEvent, 0, len(events))
	for _, e := range events {
		row := schema.WasmStateEvent{
			BlockHeight:     e.BlockHeight,
			ContractAddress: e.ContractAddress,
			Key:             e.Key,
			Value:           e.Value,
			Delete:          e.Delete,
			CodeID:          e.CodeID,
			BlockTimeUnixMs: e.BlockTimeUnixMs,
		}
		if e.ValueJSON != nil {
			row.ValueJSON = datatypes.JSON(e.ValueJSON)
		}
		rows = append(rows, row)
	}
	return rows
}

// transformable keeps the parsed events eligible for the transformer
// engine: those whose code ID resolved
func transformable(events []domain.StateEvent) []domain.StateEvent {
	kept := events[:0:0]
	for _, e := range events {
		if e.CodeID != domain.CodeIDUnknown {
			kept = append(kept, e)
		}
	}
	return kept
}

func eventAddresses(events []domain.StateEvent) []string {
	seen := make(map[string]struct{})
	var addresses []string
	for _, e := range events {
		if _, ok := seen[e.ContractAddress]; !ok {
			seen[e.ContractAddress] = struct{}{}
			addresses = append(addresses, e.ContractAddress)
		}
	}
	return addresses
}

func maxBlock(contractEvents []domain.ContractEvent, stateEvents []domain.StateEvent) (uint64, uint64) {
	var height, timeMs uint64
	for _, e := range contractEvents {
		if e.BlockHeight > height {
			height, timeMs = e.BlockHeight, e.BlockTimeUnixMs
		}
	}
	for _, e := range stateEvents {
		if e.BlockHeight > height {
			height, timeMs = e.BlockHeight, e.BlockTimeUnixMs
		}
	}
	return height, timeMs
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
