package wasm

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
)

func traceRecord(op domain.TraceOperation, key, value []byte, height, timeMs uint64) domain.TraceRecord {
	return domain.TraceRecord{
		Operation: op,
		Key:       base64.StdEncoding.EncodeToString(key),
		Value:     base64.StdEncoding.EncodeToString(value),
		Metadata: domain.TraceMetadata{
			BlockHeight: domain.FlexUint64(height),
		},
		BlockTimeUnixMs: domain.FlexUint64(timeMs),
	}
}

func TestMatcher_ContractInstantiation(t *testing.T) {
	m := NewMatcher("juno-1", "juno")
	addr := testAddress(32)
	key := StandardLayout.EncodeContractInfoKey(addr)
	value := encodeContractInfo(42, "c", "a", "L")

	contractEvent, stateEvent := m.Match(traceRecord(domain.TraceOperationWrite, key, value, 100, 1700000000000))
	require.NotNil(t, contractEvent)
	assert.Nil(t, stateEvent)

	wantAddr, err := Bech32Address("juno", addr)
	require.NoError(t, err)
	assert.Equal(t, wantAddr, contractEvent.Address)
	assert.Equal(t, uint64(42), contractEvent.CodeID)
	assert.Equal(t, "a", contractEvent.Admin)
	assert.Equal(t, "c", contractEvent.Creator)
	assert.Equal(t, "L", contractEvent.Label)
	assert.Equal(t, uint64(100), contractEvent.BlockHeight)
	assert.Equal(t, uint64(1700000000000), contractEvent.BlockTimeUnixMs)
}

func TestMatcher_StateWrite(t *testing.T) {
	m := NewMatcher("juno-1", "juno")
	addr := testAddress(32)
	key := StandardLayout.EncodeContractStoreKey(addr, []byte{1, 2, 3})

	contractEvent, stateEvent := m.Match(traceRecord(domain.TraceOperationWrite, key, []byte(`{"x":1}`), 101, 1700000000001))
	assert.Nil(t, contractEvent)
	require.NotNil(t, stateEvent)

	assert.Equal(t, "1,2,3", stateEvent.Key)
	assert.Equal(t, `{"x":1}`, stateEvent.Value)
	assert.JSONEq(t, `{"x":1}`, string(stateEvent.ValueJSON))
	assert.False(t, stateEvent.Delete)
	assert.Equal(t, domain.CodeIDUnknown, stateEvent.CodeID)
	assert.Equal(t, uint64(101), stateEvent.BlockHeight)
}

func TestMatcher_StateWriteNonJSON(t *testing.T) {
	m := NewMatcher("juno-1", "juno")
	key := StandardLayout.EncodeContractStoreKey(testAddress(32), []byte("raw"))

	// Not valid UTF-8, not JSON: raw bytes survive, value_json stays nil.
	_, stateEvent := m.Match(traceRecord(domain.TraceOperationWrite, key, []byte{0xff, 0xfe, 0x01}, 5, 1))
	require.NotNil(t, stateEvent)
	assert.Equal(t, string([]byte{0xff, 0xfe, 0x01}), stateEvent.Value)
	assert.Nil(t, stateEvent.ValueJSON)
}

func TestMatcher_StateDelete(t *testing.T) {
	m := NewMatcher("juno-1", "juno")
	key := StandardLayout.EncodeContractStoreKey(testAddress(32), []byte{7})

	_, stateEvent := m.Match(traceRecord(domain.TraceOperationDelete, key, nil, 6, 1))
	require.NotNil(t, stateEvent)
	assert.True(t, stateEvent.Delete)
	assert.Nil(t, stateEvent.ValueJSON)
}

func TestMatcher_Drops(t *testing.T) {
	m := NewMatcher("juno-1", "juno")
	addr := testAddress(32)

	tests := []struct {
		name string
		rec  domain.TraceRecord
	}{
		{
			name: "non-wasm prefix",
			rec:  traceRecord(domain.TraceOperationWrite, append([]byte{0x01}, addr...), []byte("x"), 1, 1),
		},
		{
			name: "undecodable base64 key",
			rec: domain.TraceRecord{
				Operation: domain.TraceOperationWrite,
				Key:       "!!!not-base64!!!",
			},
		},
		{
			name: "contract info with malformed protobuf",
			rec:  traceRecord(domain.TraceOperationWrite, StandardLayout.EncodeContractInfoKey(addr), []byte{0xff, 0xff}, 1, 1),
		},
		{
			name: "contract info with zero code id",
			rec:  traceRecord(domain.TraceOperationWrite, StandardLayout.EncodeContractInfoKey(addr), encodeContractInfo(0, "c", "", ""), 1, 1),
		},
		{
			name: "contract info delete",
			rec:  traceRecord(domain.TraceOperationDelete, StandardLayout.EncodeContractInfoKey(addr), nil, 1, 1),
		},
		{
			name: "key shorter than address",
			rec:  traceRecord(domain.TraceOperationWrite, []byte{0x03, 1, 2}, []byte("x"), 1, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contractEvent, stateEvent := m.Match(tt.rec)
			assert.Nil(t, contractEvent)
			assert.Nil(t, stateEvent)
		})
	}
}

func TestMatcher_TerraClassicLayout(t *testing.T) {
	m := NewMatcher("columbus-5", "terra")
	addr := testAddress(20)
	key := append([]byte{0x05, 0x14}, addr...)
	key = append(key, 9, 9)

	_, stateEvent := m.Match(traceRecord(domain.TraceOperationWrite, key, []byte("v"), 10, 1))
	require.NotNil(t, stateEvent)
	assert.Equal(t, "9,9", stateEvent.Key)

	wantAddr, err := Bech32Address("terra", addr)
	require.NoError(t, err)
	assert.Equal(t, wantAddr, stateEvent.ContractAddress)
}

func TestMatcher_MatchBatch_Dedup(t *testing.T) {
	m := NewMatcher("juno-1", "juno")
	addr := testAddress(32)
	storeKey := StandardLayout.EncodeContractStoreKey(addr, []byte{1})

	records := []domain.TraceRecord{
		traceRecord(domain.TraceOperationWrite, storeKey, []byte(`{"v":1}`), 50, 1),
		traceRecord(domain.TraceOperationWrite, storeKey, []byte(`{"v":2}`), 50, 1),
		traceRecord(domain.TraceOperationDelete, storeKey, nil, 50, 1),
		traceRecord(domain.TraceOperationWrite, StandardLayout.EncodeContractInfoKey(addr), encodeContractInfo(1, "c", "", "x"), 50, 1),
		traceRecord(domain.TraceOperationWrite, StandardLayout.EncodeContractInfoKey(addr), encodeContractInfo(2, "c", "", "y"), 50, 1),
	}

	contracts, states := m.MatchBatch(records)
	require.Len(t, contracts, 1)
	require.Len(t, states, 1)

	// Last write wins within the batch.
	assert.Equal(t, uint64(2), contracts[0].CodeID)
	assert.True(t, states[0].Delete)
	assert.Nil(t, states[0].ValueJSON)
}
