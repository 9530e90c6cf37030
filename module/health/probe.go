// Package health implements the readiness probes of node roles and the lookup of a healthy node's
// peer identity.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/exp/slices"

	"github.com/onflow/localnet/config"
	"github.com/onflow/localnet/model/localnet"
)

// probe kinds, see config.Probe
const (
	KindJSONRPC = "jsonrpc"
	KindHTTP    = "http"
	KindTCP     = "tcp"
)

// Result is the outcome of a single probe attempt.
type Result struct {
	// Answered is false when the node could not be reached at all.
	Answered bool
	Healthy  bool
	Detail   string
}

func healthy() Result {
	return Result{Answered: true, Healthy: true}
}

func negative(format string, args ...any) Result {
	return Result{Answered: true, Detail: fmt.Sprintf(format, args...)}
}

func unanswered(err error) Result {
	return Result{Detail: err.Error()}
}

func (r Result) String() string {
	switch {
	case r.Healthy:
		return "healthy"
	case r.Answered:
		return "answered negatively: " + r.Detail
	default:
		return "no answer: " + r.Detail
	}
}

// Probe checks whether a node has finished its startup.
type Probe interface {
	// Check performs one attempt. It returns once the node answered, or once ctx or the request timeout
	// expired.
	Check(ctx context.Context) Result
	// Target describes what is probed, for log messages.
	Target() string
}

// NewProbe returns the probe configured for the node's role.
func NewProbe(cfg config.Probe, endpoint *localnet.Endpoint, networkID uint64, requestTimeout time.Duration) (Probe, error) {
	switch cfg.Kind {
	case KindJSONRPC:
		if endpoint.RPCURL == "" {
			return nil, fmt.Errorf("node %s has no rpc port to probe", endpoint.Node)
		}
		return NewJSONRPCProbe(endpoint.RPCURL, networkID, requestTimeout), nil
	case KindHTTP:
		if endpoint.RPCURL == "" {
			return nil, fmt.Errorf("node %s has no rpc port to probe", endpoint.Node)
		}
		return NewHTTPProbe(endpoint.RPCURL+cfg.Path, cfg.ExpectStatus, requestTimeout), nil
	case KindTCP:
		addr, err := hostPort(endpoint.RPCURL)
		if err != nil {
			return nil, err
		}
		return NewTCPProbe(addr, requestTimeout), nil
	default:
		return nil, fmt.Errorf("unknown probe kind %q", cfg.Kind)
	}
}

// JSONRPCProbe calls eth_chainId. The node is healthy once it answers with the expected chain id.
type JSONRPCProbe struct {
	url     string
	chainID uint64
	timeout time.Duration
}

func NewJSONRPCProbe(url string, chainID uint64, timeout time.Duration) *JSONRPCProbe {
	return &JSONRPCProbe{url: url, chainID: chainID, timeout: timeout}
}

func (p *JSONRPCProbe) Target() string {
	return "eth_chainId at " + p.url
}

func (p *JSONRPCProbe) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client, err := rpc.DialContext(ctx, p.url)
	if err != nil {
		return unanswered(err)
	}
	defer client.Close()

	var chainID hexutil.Big
	err = client.CallContext(ctx, &chainID, "eth_chainId")
	if err != nil {
		if answered(err) {
			return negative("%v", err)
		}
		return unanswered(err)
	}

	if got := chainID.ToInt(); !got.IsUint64() || got.Uint64() != p.chainID {
		return negative("chain id %s, expected %d", got, p.chainID)
	}
	return healthy()
}

// answered returns true for rpc errors the node itself replied with.
func answered(err error) bool {
	var rpcErr rpc.Error
	var httpErr rpc.HTTPError
	return errors.As(err, &rpcErr) || errors.As(err, &httpErr)
}

// HTTPProbe issues a GET request. The node is healthy once it answers with one of the expected
// statuses, 200 if none are configured.
type HTTPProbe struct {
	url     string
	expect  []int
	timeout time.Duration
	client  *http.Client
}

func NewHTTPProbe(url string, expect []int, timeout time.Duration) *HTTPProbe {
	if len(expect) == 0 {
		expect = []int{http.StatusOK}
	}
	return &HTTPProbe{
		url:     url,
		expect:  expect,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (p *HTTPProbe) Target() string {
	return "GET " + p.url
}

func (p *HTTPProbe) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return unanswered(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return unanswered(err)
	}
	_ = resp.Body.Close()

	if !slices.Contains(p.expect, resp.StatusCode) {
		return negative("status %d, expected one of %v", resp.StatusCode, p.expect)
	}
	return healthy()
}

// TCPProbe considers a node healthy once its port accepts connections.
type TCPProbe struct {
	addr    string
	timeout time.Duration
}

func NewTCPProbe(addr string, timeout time.Duration) *TCPProbe {
	return &TCPProbe{addr: addr, timeout: timeout}
}

func (p *TCPProbe) Target() string {
	return "tcp " + p.addr
}

func (p *TCPProbe) Check(ctx context.Context) Result {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return unanswered(err)
	}
	_ = conn.Close()
	return healthy()
}

func hostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint url %q", rawURL)
	}
	return u.Host, nil
}
