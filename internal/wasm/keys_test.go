package wasm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
)

func testAddress(n int) []byte {
	addr := make([]byte, n)
	for i := range addr {
		addr[i] = byte(i + 1)
	}
	return addr
}

func TestLayoutForChain(t *testing.T) {
	assert.Equal(t, TerraClassicLayout, LayoutForChain("columbus-5"))
	assert.Equal(t, StandardLayout, LayoutForChain("juno-1"))
	assert.Equal(t, StandardLayout, LayoutForChain("osmosis-1"))
}

func TestKeyLayout_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		layout  KeyLayout
		addr    []byte
		userKey []byte
	}{
		{
			name:    "standard contract store key",
			layout:  StandardLayout,
			addr:    testAddress(32),
			userKey: []byte("contract_info"),
		},
		{
			name:    "standard empty user key",
			layout:  StandardLayout,
			addr:    testAddress(32),
			userKey: nil,
		},
		{
			name:    "terra classic 20-byte address",
			layout:  TerraClassicLayout,
			addr:    testAddress(20),
			userKey: []byte{9, 9},
		},
		{
			name:    "terra classic 32-byte address",
			layout:  TerraClassicLayout,
			addr:    testAddress(32),
			userKey: []byte("balances"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storeKey := tt.layout.EncodeContractStoreKey(tt.addr, tt.userKey)
			decoded, err := tt.layout.Decode(storeKey)
			require.NoError(t, err)
			assert.Equal(t, KeyFamilyContractStore, decoded.Family)
			assert.True(t, bytes.Equal(tt.addr, decoded.ContractAddress))
			assert.True(t, bytes.Equal(tt.userKey, decoded.UserKey))

			infoKey := tt.layout.EncodeContractInfoKey(tt.addr)
			decoded, err = tt.layout.Decode(infoKey)
			require.NoError(t, err)
			assert.Equal(t, KeyFamilyContractInfo, decoded.Family)
			assert.True(t, bytes.Equal(tt.addr, decoded.ContractAddress))
			assert.Empty(t, decoded.UserKey)
		})
	}
}

func TestKeyLayout_Decode_TerraClassicLengthPrefix(t *testing.T) {
	addr := testAddress(20)
	key := append([]byte{0x05, 0x14}, addr...)
	key = append(key, 9, 9)

	decoded, err := TerraClassicLayout.Decode(key)
	require.NoError(t, err)
	assert.Equal(t, KeyFamilyContractStore, decoded.Family)
	assert.Len(t, decoded.ContractAddress, 20)
	assert.Equal(t, "9,9", CanonicalKey(decoded.UserKey))
}

func TestKeyLayout_Decode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		layout KeyLayout
		key    []byte
		err    error
	}{
		{
			name:   "empty key",
			layout: StandardLayout,
			key:    nil,
			err:    domain.ErrInvalidStoreKey,
		},
		{
			name:   "unknown prefix",
			layout: StandardLayout,
			key:    []byte{0x07, 1, 2, 3},
			err:    ErrUnrecognizedPrefix,
		},
		{
			name:   "standard key shorter than address",
			layout: StandardLayout,
			key:    append([]byte{0x03}, testAddress(16)...),
			err:    domain.ErrInvalidStoreKey,
		},
		{
			name:   "terra key missing length byte",
			layout: TerraClassicLayout,
			key:    []byte{0x04},
			err:    domain.ErrInvalidStoreKey,
		},
		{
			name:   "terra key shorter than declared length",
			layout: TerraClassicLayout,
			key:    []byte{0x05, 0x20, 1, 2, 3},
			err:    domain.ErrInvalidStoreKey,
		},
		{
			name:   "terra prefix not recognized by standard layout",
			layout: StandardLayout,
			key:    append([]byte{0x05, 0x14}, testAddress(20)...),
			err:    ErrUnrecognizedPrefix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.layout.Decode(tt.key)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	assert.Equal(t, "99,111,110,116,114,97,99,116,95,105,110,102,111", CanonicalKey([]byte("contract_info")))
	assert.Equal(t, "1,2,3", CanonicalKey([]byte{1, 2, 3}))
	assert.Equal(t, "0,255", CanonicalKey([]byte{0, 255}))
	assert.Equal(t, "", CanonicalKey(nil))
}

func TestParseCanonicalKey_RoundTrip(t *testing.T) {
	tests := [][]byte{
		[]byte("contract_info"),
		{0, 1, 255},
		{},
		testAddress(64),
	}
	for _, raw := range tests {
		parsed, err := ParseCanonicalKey(CanonicalKey(raw))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(raw, parsed))
	}

	_, err := ParseCanonicalKey("1,2,300")
	assert.Error(t, err)
	_, err = ParseCanonicalKey("1,,2")
	assert.Error(t, err)
}

func TestBech32Address(t *testing.T) {
	addr, err := Bech32Address("juno", testAddress(32))
	require.NoError(t, err)
	assert.True(t, len(addr) > 4)
	assert.Equal(t, "juno1", addr[:5])

	// Same bytes, different prefix, different text.
	other, err := Bech32Address("terra", testAddress(32))
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)
}
