package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// calculateSafeBatchSize computes the batch size for bulk inserts that stays
// under PostgreSQL's extended-protocol limit of 65535 parameters per query.
// Each record consumes one parameter per field, and the conflict clause plus
// GORM bookkeeping add batch-level overhead, reserved as headroom.
func calculateSafeBatchSize(totalRecords int, fieldsPerRecord int) int {
	const maxParams = 65535
	const totalHeadroom = 1000

	availableParams := maxParams - totalHeadroom
	safeBatchSize := max(availableParams/fieldsPerRecord, 1)

	if safeBatchSize > totalRecords {
		return totalRecords
	}

	return safeBatchSize
}

// Migrate creates all tables and indexes
func (s *pgStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&schema.Block{},
		&schema.Contract{},
		&schema.WasmStateEvent{},
		&schema.WasmStateEventTransformation{},
		&schema.IndexerState{},
		&schema.WasmCode{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// EnsureBlocks inserts one row per block height, first write wins
func (s *pgStore) EnsureBlocks(ctx context.Context, blocks []schema.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "height"}},
		DoNothing: true,
	}).CreateInBatches(&blocks, calculateSafeBatchSize(len(blocks), 2)).Error
	if err != nil {
		return fmt.Errorf("failed to ensure blocks: %w", err)
	}
	return nil
}

// UpsertContracts inserts contracts from lifecycle events; address conflicts
// update the mutable metadata columns only
func (s *pgStore) UpsertContracts(ctx context.Context, contracts []schema.Contract) error {
	if len(contracts) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"code_id", "admin", "creator", "label"}),
	}).CreateInBatches(&contracts, calculateSafeBatchSize(len(contracts), 8)).Error
	if err != nil {
		return fmt.Errorf("failed to upsert contracts: %w", err)
	}
	return nil
}

// EnsureContractsExist inserts placeholder rows for state-event-only
// addresses; existing rows are untouched
func (s *pgStore) EnsureContractsExist(ctx context.Context, contracts []schema.Contract) error {
	if len(contracts) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).CreateInBatches(&contracts, calculateSafeBatchSize(len(contracts), 8)).Error
	if err != nil {
		return fmt.Errorf("failed to ensure contracts exist: %w", err)
	}
	return nil
}

// GetContractsByAddresses returns the contract rows for the given addresses
func (s *pgStore) GetContractsByAddresses(ctx context.Context, addresses []string) ([]schema.Contract, error) {
	if len(addresses) == 0 {
		return []schema.Contract{}, nil
	}

	var contracts []schema.Contract
	err := s.db.WithContext(ctx).
		Where("address IN ?", addresses).
		Find(&contracts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get contracts: %w", err)
	}
	return contracts, nil
}

// UpdateContractCodeIDs sets code_id on the given contracts
func (s *pgStore) UpdateContractCodeIDs(ctx context.Context, codeIDs map[string]uint64) error {
	if len(codeIDs) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for address, codeID := range codeIDs {
			err := tx.Model(&schema.Contract{}).
				Where("address = ?", address).
				Update("code_id", codeID).Error
			if err != nil {
				return fmt.Errorf("failed to update code id for %s: %w", address, err)
			}
		}
		return nil
	})
}

// UpsertStateEvents bulk-inserts state events; composite-key conflicts
// overwrite value, value_json, and delete
func (s *pgStore) UpsertStateEvents(ctx context.Context, events []schema.WasmStateEvent) ([]schema.WasmStateEvent, error) {
	if len(events) == 0 {
		return []schema.WasmStateEvent{}, nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "block_height"},
			{Name: "contract_address"},
			{Name: "key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"value", "value_json", "delete"}),
	}).CreateInBatches(&events, calculateSafeBatchSize(len(events), 8)).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert state events: %w", err)
	}
	return events, nil
}

// UpsertTransformations bulk-inserts derived rows; composite-key conflicts
// overwrite value
func (s *pgStore) UpsertTransformations(ctx context.Context, rows []schema.WasmStateEventTransformation) ([]schema.WasmStateEventTransformation, error) {
	if len(rows) == 0 {
		return []schema.WasmStateEventTransformation{}, nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "contract_address"},
			{Name: "name"},
			{Name: "block_height"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).CreateInBatches(&rows, calculateSafeBatchSize(len(rows), 5)).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert transformations: %w", err)
	}
	return rows, nil
}

// GetIndexerState returns the singleton state row
func (s *pgStore) GetIndexerState(ctx context.Context) (*schema.IndexerState, error) {
	var state schema.IndexerState
	err := s.db.WithContext(ctx).Where("id = ?", schema.IndexerStateID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrIndexerStateMissing
		}
		return nil, fmt.Errorf("failed to get indexer state: %w", err)
	}
	return &state, nil
}

// EnsureIndexerState creates the singleton state row if absent
func (s *pgStore) EnsureIndexerState(ctx context.Context, chainID string) (*schema.IndexerState, error) {
	state := schema.IndexerState{
		ID:      schema.IndexerStateID,
		ChainID: chainID,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&state).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure indexer state: %w", err)
	}
	return s.GetIndexerState(ctx)
}

// AdvanceIndexerState advances the watermark and latest-block pointers; the
// GREATEST expressions make the update monotonic under re-processing
func (s *pgStore) AdvanceIndexerState(ctx context.Context, lastWasmHeight, latestHeight, latestTimeMs uint64) error {
	result := s.db.WithContext(ctx).Model(&schema.IndexerState{}).
		Where("id = ?", schema.IndexerStateID).
		Updates(map[string]interface{}{
			"last_wasm_block_height_exported": gorm.Expr("GREATEST(last_wasm_block_height_exported, ?)", lastWasmHeight),
			"latest_block_height":             gorm.Expr("GREATEST(latest_block_height, ?)", latestHeight),
			"latest_block_time_unix_ms":       gorm.Expr("GREATEST(latest_block_time_unix_ms, ?)", latestTimeMs),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to advance indexer state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrIndexerStateMissing
	}
	return nil
}

// GetWasmCodes returns the code-key name to code-ID set mapping
func (s *pgStore) GetWasmCodes(ctx context.Context) (map[string][]uint64, error) {
	var codes []schema.WasmCode
	if err := s.db.WithContext(ctx).Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("failed to get wasm codes: %w", err)
	}

	result := make(map[string][]uint64)
	for _, code := range codes {
		result[code.CodeKey] = append(result[code.CodeKey], code.CodeID)
	}
	return result, nil
}
