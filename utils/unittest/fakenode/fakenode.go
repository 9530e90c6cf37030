// Package fakenode lets a test binary stand in for node binaries. A package whose tests launch node
// processes calls Main from its TestMain; when the test binary is re-executed with EnvFakeNode set, it
// serves the readiness endpoints of every role instead of running the tests.
package fakenode

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

// EnvFakeNode marks a re-executed test binary as a fake node.
const EnvFakeNode = "LOCALNET_FAKE_NODE"

// Main runs the fake node and exits if the current process was started as one. Otherwise it returns
// immediately.
func Main() {
	if os.Getenv(EnvFakeNode) != "1" {
		return
	}
	os.Exit(run(os.Args[1:]))
}

// Binary returns the path of the running test binary.
func Binary() string {
	path, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return path
}

// Env returns the environment entries that turn the test binary into a fake node.
func Env() []string {
	return []string{EnvFakeNode + "=1"}
}

type options struct {
	host          string
	rpcPort       int
	chainID       uint64
	unhealthy     bool
	neverListen   bool
	ignoreSigterm bool
	exitAfter     time.Duration
	healthyAfter  time.Duration
	identity      string
	pidFile       string
	output        string
}

func run(args []string) int {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:])
	}

	var opts options
	flags := pflag.NewFlagSet("fakenode", pflag.ContinueOnError)
	flags.StringVar(&opts.host, "host", "127.0.0.1", "listen host")
	flags.IntVar(&opts.rpcPort, "rpc-port", 0, "port serving the readiness endpoints")
	flags.Uint64Var(&opts.chainID, "chain-id", 1337, "chain id answered to eth_chainId")
	flags.BoolVar(&opts.unhealthy, "unhealthy", false, "answer every readiness probe negatively")
	flags.BoolVar(&opts.neverListen, "never-listen", false, "run without serving anything")
	flags.BoolVar(&opts.ignoreSigterm, "ignore-sigterm", false, "keep running after SIGTERM")
	flags.DurationVar(&opts.exitAfter, "exit-after", 0, "exit with code 3 after this duration")
	flags.DurationVar(&opts.healthyAfter, "healthy-after", 0, "answer probes negatively until this duration passed")
	flags.StringVar(&opts.identity, "identity", "", "peer identity (enode or ENR) to report")
	flags.StringVar(&opts.pidFile, "pid-file", "", "file to write the process id to")
	flags.StringVar(&opts.output, "output", "", "line printed to stdout and stderr on startup")
	// unknown flags are accepted so real node argument templates can be reused
	flags.ParseErrorsWhitelist.UnknownFlags = true
	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if opts.pidFile != "" {
		if err := os.WriteFile(opts.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	if opts.output != "" {
		fmt.Fprintln(os.Stdout, "stdout: "+opts.output)
		fmt.Fprintln(os.Stderr, "stderr: "+opts.output)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)

	var server *http.Server
	if !opts.neverListen && opts.rpcPort != 0 {
		listener, err := net.Listen("tcp", net.JoinHostPort(opts.host, strconv.Itoa(opts.rpcPort)))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		server = &http.Server{Handler: newHandler(opts, time.Now())}
		go func() {
			_ = server.Serve(listener)
		}()
	}

	var exit <-chan time.Time
	if opts.exitAfter > 0 {
		exit = time.After(opts.exitAfter)
	}

	for {
		select {
		case <-exit:
			fmt.Fprintln(os.Stderr, "exiting on schedule")
			return 3
		case sig := <-sigs:
			if opts.ignoreSigterm {
				fmt.Fprintf(os.Stderr, "ignoring %s\n", sig)
				continue
			}
			if server != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				_ = server.Shutdown(ctx)
				cancel()
			}
			fmt.Fprintln(os.Stdout, "shutdown complete")
			return 0
		}
	}
}

func runInit(args []string) int {
	flags := pflag.NewFlagSet("fakenode-init", pflag.ContinueOnError)
	datadir := flags.String("datadir", "", "data directory to initialise")
	fail := flags.Bool("fail-init", false, "fail the init step")
	flags.ParseErrorsWhitelist.UnknownFlags = true
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *fail {
		fmt.Fprintln(os.Stderr, "init failed on request")
		return 1
	}
	if *datadir != "" {
		if err := os.MkdirAll(*datadir, 0755); err != nil {
			return 1
		}
		if err := os.WriteFile(filepath.Join(*datadir, "initialised"), nil, 0644); err != nil {
			return 1
		}
	}
	return 0
}

func newHandler(opts options, started time.Time) http.Handler {
	ready := func() bool {
		return !opts.unhealthy && time.Since(started) >= opts.healthyAfter
	}
	status := func(w http.ResponseWriter) {
		if !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/eth/v1/node/health", func(w http.ResponseWriter, _ *http.Request) {
		status(w)
	})
	mux.HandleFunc("/eth/v1/builder/status", func(w http.ResponseWriter, _ *http.Request) {
		status(w)
	})
	mux.HandleFunc("/eth/v1/node/identity", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"enr": opts.identity},
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		serveJSONRPC(w, r, opts)
	})
	return mux
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func serveJSONRPC(w http.ResponseWriter, r *http.Request, opts options) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      req.ID,
	}
	switch req.Method {
	case "eth_chainId":
		resp["result"] = "0x" + strconv.FormatUint(opts.chainID, 16)
	case "admin_nodeInfo":
		resp["result"] = map[string]string{"enode": opts.identity}
	default:
		resp["error"] = map[string]interface{}{
			"code":    -32601,
			"message": "method not found",
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
