package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnt-labs/dao-dao-indexer/internal/adapter"
	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
)

// fakeHTTP serves canned JSON responses by URL
type fakeHTTP struct {
	responses map[string]string
	errs      map[string]error
	requests  []string
}

func (f *fakeHTTP) Get(ctx context.Context, url string, result interface{}) error {
	f.requests = append(f.requests, url)
	if err, ok := f.errs[url]; ok {
		return err
	}
	body, ok := f.responses[url]
	if !ok {
		return adapter.ErrNotFound
	}
	return json.Unmarshal([]byte(body), result)
}

func TestClient_ContractInfo(t *testing.T) {
	http := &fakeHTTP{
		responses: map[string]string{
			"http://node:1317/cosmwasm/wasm/v1/contract/juno1abc": `{
				"address": "juno1abc",
				"contract_info": {
					"code_id": "42",
					"creator": "juno1creator",
					"admin": "juno1admin",
					"label": "my contract"
				}
			}`,
		},
	}
	c := NewClient("http://node:1317/", http)

	meta, err := c.ContractInfo(context.Background(), "juno1abc")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), meta.CodeID)
	assert.Equal(t, "juno1creator", meta.Creator)
	assert.Equal(t, "juno1admin", meta.Admin)
	assert.Equal(t, "my contract", meta.Label)

	// The trailing slash on the endpoint is trimmed.
	require.Len(t, http.requests, 1)
	assert.Equal(t, "http://node:1317/cosmwasm/wasm/v1/contract/juno1abc", http.requests[0])
}

func TestClient_ContractInfo_NotFound(t *testing.T) {
	c := NewClient("http://node:1317", &fakeHTTP{})

	_, err := c.ContractInfo(context.Background(), "juno1missing")
	assert.ErrorIs(t, err, domain.ErrContractNotFound)
}

func TestClient_ContractInfo_TransportError(t *testing.T) {
	transportErr := errors.New("connection refused")
	http := &fakeHTTP{
		errs: map[string]error{
			"http://node:1317/cosmwasm/wasm/v1/contract/juno1abc": transportErr,
		},
	}
	c := NewClient("http://node:1317", http)

	_, err := c.ContractInfo(context.Background(), "juno1abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
	assert.NotErrorIs(t, err, domain.ErrContractNotFound)
}

func TestClient_ContractInfo_InvalidCodeID(t *testing.T) {
	http := &fakeHTTP{
		responses: map[string]string{
			"http://node:1317/cosmwasm/wasm/v1/contract/juno1abc": `{
				"contract_info": {"code_id": "not-a-number"}
			}`,
		},
	}
	c := NewClient("http://node:1317", http)

	_, err := c.ContractInfo(context.Background(), "juno1abc")
	assert.Error(t, err)
}

func TestClient_ChainID(t *testing.T) {
	http := &fakeHTTP{
		responses: map[string]string{
			"http://node:1317/cosmos/base/tendermint/v1beta1/node_info": `{
				"default_node_info": {"network": "juno-1"}
			}`,
		},
	}
	c := NewClient("http://node:1317", http)

	chainID, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "juno-1", chainID)
}

func TestClient_ChainID_Empty(t *testing.T) {
	http := &fakeHTTP{
		responses: map[string]string{
			"http://node:1317/cosmos/base/tendermint/v1beta1/node_info": `{"default_node_info": {}}`,
		},
	}
	c := NewClient("http://node:1317", http)

	_, err := c.ChainID(context.Background())
	assert.ErrorIs(t, err, domain.ErrChainIDMissing)
}
