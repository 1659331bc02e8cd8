package cosmos

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/burnt-labs/dao-dao-indexer/internal/adapter"
	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
)

// Client queries a Cosmos node's LCD/REST endpoint
type Client interface {
	// ContractInfo fetches a contract's metadata; returns
	// domain.ErrContractNotFound when the address holds no contract
	ContractInfo(ctx context.Context, address string) (*domain.ContractMeta, error)

	// ChainID returns the network name reported by the node
	ChainID(ctx context.Context) (string, error)
}

type client struct {
	endpoint string
	http     adapter.HTTPClient
}

// NewClient creates an LCD client against the given endpoint
func NewClient(endpoint string, httpClient adapter.HTTPClient) Client {
	return &client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     httpClient,
	}
}

// contractInfoResponse mirrors /cosmwasm/wasm/v1/contract/{address}
type contractInfoResponse struct {
	Address      string `json:"address"`
	ContractInfo struct {
		CodeID  string `json:"code_id"`
		Creator string `json:"creator"`
		Admin   string `json:"admin"`
		Label   string `json:"label"`
	} `json:"contract_info"`
}

// nodeInfoResponse mirrors /cosmos/base/tendermint/v1beta1/node_info
type nodeInfoResponse struct {
	DefaultNodeInfo struct {
		Network string `json:"network"`
	} `json:"default_node_info"`
}

func (c *client) ContractInfo(ctx context.Context, address string) (*domain.ContractMeta, error) {
	url := fmt.Sprintf("%s/cosmwasm/wasm/v1/contract/%s", c.endpoint, address)

	var resp contractInfoResponse
	if err := c.http.Get(ctx, url, &resp); err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			return nil, domain.ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to fetch contract info for %s: %w", address, err)
	}

	// The LCD encodes uint64 fields as strings.
	codeID, err := strconv.ParseUint(resp.ContractInfo.CodeID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid code id %q for %s: %w", resp.ContractInfo.CodeID, address, err)
	}

	return &domain.ContractMeta{
		Address: address,
		CodeID:  codeID,
		Admin:   resp.ContractInfo.Admin,
		Creator: resp.ContractInfo.Creator,
		Label:   resp.ContractInfo.Label,
	}, nil
}

func (c *client) ChainID(ctx context.Context) (string, error) {
	url := c.endpoint + "/cosmos/base/tendermint/v1beta1/node_info"

	var resp nodeInfoResponse
	if err := c.http.Get(ctx, url, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch node info: %w", err)
	}
	if resp.DefaultNodeInfo.Network == "" {
		return "", domain.ErrChainIDMissing
	}
	return resp.DefaultNodeInfo.Network, nil
}
