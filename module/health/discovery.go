package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/onflow/localnet/model/localnet"
)

// discovery kinds, see config.RoleConfig
const (
	DiscoveryEnode = "enode"
	DiscoveryENR   = "enr"
	DiscoveryNone  = "none"
)

// IdentityPath is the beacon node API route returning the node's ENR.
const IdentityPath = "/eth/v1/node/identity"

// Discover looks up the peer identity of a healthy node, which dependent nodes use to bootstrap.
// It returns an empty identity for DiscoveryNone.
func Discover(ctx context.Context, kind string, endpoint *localnet.Endpoint, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		identity string
		err      error
	)
	switch kind {
	case DiscoveryNone, "":
		return "", nil
	case DiscoveryEnode:
		identity, err = enode(ctx, endpoint.RPCURL)
	case DiscoveryENR:
		identity, err = enr(ctx, endpoint.RPCURL+IdentityPath)
	default:
		return "", fmt.Errorf("unknown discovery kind %q", kind)
	}
	if err != nil {
		return "", fmt.Errorf("could not discover %s of node %s: %w", kind, endpoint.Node, err)
	}
	if identity == "" {
		return "", fmt.Errorf("node %s reported an empty %s", endpoint.Node, kind)
	}
	return identity, nil
}

func enode(ctx context.Context, url string) (string, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return "", err
	}
	defer client.Close()

	var info struct {
		Enode string `json:"enode"`
	}
	if err := client.CallContext(ctx, &info, "admin_nodeInfo"); err != nil {
		return "", err
	}
	return info.Enode, nil
}

func enr(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var identity struct {
		Data struct {
			ENR string `json:"enr"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return "", fmt.Errorf("could not decode identity: %w", err)
	}
	return identity.Data.ENR, nil
}
