package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/store/schema"
)

func testEvent(height uint64, address, key, value string) schema.WasmStateEvent {
	return schema.WasmStateEvent{
		BlockHeight:     height,
		ContractAddress: address,
		Key:             key,
		Value:           value,
		BlockTimeUnixMs: height * 1000,
	}
}

func TestMemoryStore_EnsureBlocks_FirstWriteWins(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.EnsureBlocks(ctx, []schema.Block{{Height: 100, TimeUnixMs: 1}}))
	require.NoError(t, st.EnsureBlocks(ctx, []schema.Block{{Height: 100, TimeUnixMs: 2}, {Height: 101, TimeUnixMs: 3}}))

	blocks := st.Blocks()
	assert.Len(t, blocks, 2)
	assert.Equal(t, uint64(1), blocks[100].TimeUnixMs)
	assert.Equal(t, uint64(3), blocks[101].TimeUnixMs)
}

func TestMemoryStore_ContractUpsertPaths(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	admin := "admin"

	// Placeholder insert from a state event.
	require.NoError(t, st.EnsureContractsExist(ctx, []schema.Contract{{
		Address:                   "juno1c",
		CodeID:                    0,
		InstantiatedAtBlockHeight: 90,
	}}))

	// Lifecycle upsert updates metadata but not instantiation fields.
	require.NoError(t, st.UpsertContracts(ctx, []schema.Contract{{
		Address:                   "juno1c",
		CodeID:                    42,
		Admin:                     &admin,
		InstantiatedAtBlockHeight: 95,
	}}))

	contracts := st.Contracts()
	require.Len(t, contracts, 1)
	c := contracts["juno1c"]
	assert.Equal(t, uint64(42), c.CodeID)
	require.NotNil(t, c.Admin)
	assert.Equal(t, "admin", *c.Admin)
	assert.Equal(t, uint64(90), c.InstantiatedAtBlockHeight)

	// A later placeholder insert is a no-op.
	require.NoError(t, st.EnsureContractsExist(ctx, []schema.Contract{{
		Address: "juno1c",
		CodeID:  0,
	}}))
	assert.Equal(t, uint64(42), st.Contracts()["juno1c"].CodeID)

	// Code-ID back-fill touches only code_id.
	require.NoError(t, st.UpdateContractCodeIDs(ctx, map[string]uint64{"juno1c": 43}))
	c = st.Contracts()["juno1c"]
	assert.Equal(t, uint64(43), c.CodeID)
	assert.Equal(t, uint64(90), c.InstantiatedAtBlockHeight)
}

// Processing the same events twice must leave the same rows (P1) and never
// produce composite-key duplicates (P5).
func TestMemoryStore_UpsertStateEvents_Idempotent(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	events := []schema.WasmStateEvent{
		testEvent(101, "juno1c", "1,2,3", `{"x":1}`),
		testEvent(101, "juno1c", "9,9", "v"),
	}
	first, err := st.UpsertStateEvents(ctx, events)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := st.UpsertStateEvents(ctx, events)
	require.NoError(t, err)
	require.Len(t, second, 2)

	assert.Len(t, st.StateEvents(), 2)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestMemoryStore_UpsertStateEvents_ConflictOverwrites(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	event := testEvent(101, "juno1c", "1,2,3", `{"x":1}`)
	event.ValueJSON = datatypes.JSON(`{"x":1}`)
	_, err := st.UpsertStateEvents(ctx, []schema.WasmStateEvent{event})
	require.NoError(t, err)

	update := testEvent(101, "juno1c", "1,2,3", "")
	update.Delete = true
	persisted, err := st.UpsertStateEvents(ctx, []schema.WasmStateEvent{update})
	require.NoError(t, err)
	require.Len(t, persisted, 1)

	rows := st.StateEvents()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Delete)
	assert.Nil(t, rows[0].ValueJSON)
}

func TestMemoryStore_IndexerState(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	_, err := st.GetIndexerState(ctx)
	assert.ErrorIs(t, err, domain.ErrIndexerStateMissing)
	assert.ErrorIs(t, st.AdvanceIndexerState(ctx, 1, 1, 1), domain.ErrIndexerStateMissing)

	state, err := st.EnsureIndexerState(ctx, "juno-1")
	require.NoError(t, err)
	assert.Equal(t, "juno-1", state.ChainID)
	assert.Zero(t, state.LastWasmBlockHeightExported)

	// Watermark only moves forward (P2).
	require.NoError(t, st.AdvanceIndexerState(ctx, 100, 100, 5000))
	require.NoError(t, st.AdvanceIndexerState(ctx, 50, 50, 4000))

	state, err = st.GetIndexerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), state.LastWasmBlockHeightExported)
	assert.Equal(t, uint64(100), state.LatestBlockHeight)
	assert.Equal(t, uint64(5000), state.LatestBlockTimeUnixMs)
}

func TestMemoryStore_UpsertTransformations(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	row := schema.WasmStateEventTransformation{
		ContractAddress: "juno1c",
		Name:            "contractInfo",
		BlockHeight:     100,
		Value:           datatypes.JSON(`{"contract":"a","version":"1"}`),
	}
	_, err := st.UpsertTransformations(ctx, []schema.WasmStateEventTransformation{row})
	require.NoError(t, err)

	row.Value = datatypes.JSON(`{"contract":"a","version":"2"}`)
	_, err = st.UpsertTransformations(ctx, []schema.WasmStateEventTransformation{row})
	require.NoError(t, err)

	rows := st.Transformations()
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"contract":"a","version":"2"}`, string(rows[0].Value))
}

func TestCalculateSafeBatchSize(t *testing.T) {
	tests := []struct {
		name            string
		totalRecords    int
		fieldsPerRecord int
		expected        int
	}{
		{
			name:            "small batch unchanged",
			totalRecords:    10,
			fieldsPerRecord: 8,
			expected:        10,
		},
		{
			name:            "large batch capped by parameter limit",
			totalRecords:    100000,
			fieldsPerRecord: 8,
			expected:        (65535 - 1000) / 8,
		},
		{
			name:            "degenerate field count still positive",
			totalRecords:    5,
			fieldsPerRecord: 70000,
			expected:        1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, calculateSafeBatchSize(tt.totalRecords, tt.fieldsPerRecord))
		})
	}
}
