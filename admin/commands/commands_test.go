package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/localnet/admin"
	"github.com/onflow/localnet/admin/commands"
	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/irrecoverable"
	"github.com/onflow/localnet/module/lifecycle"
	"github.com/onflow/localnet/module/metrics"
	"github.com/onflow/localnet/utils/unittest"
)

type fakeRun struct {
	logs map[localnet.NodeID][]string
}

func (f *fakeRun) Status() lifecycle.Status {
	status := lifecycle.Status{RunID: "run-1", State: localnet.RunRunning, Mode: "standard"}
	for _, id := range []localnet.NodeID{"execution-0", "consensus-0"} {
		role, _ := localnet.ParseRole(string(id)[:len(id)-2])
		status.Nodes = append(status.Nodes, lifecycle.NodeStatus{ID: id, Role: role, State: localnet.HealthHealthy, PID: 100})
	}
	return status
}

func (f *fakeRun) TailLog(id localnet.NodeID, n int) ([]string, error) {
	lines, ok := f.logs[id]
	if !ok {
		return nil, errors.New("no log")
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func (f *fakeRun) DumpLogs() (map[localnet.NodeID][]byte, error) {
	dump := make(map[localnet.NodeID][]byte)
	for id, lines := range f.logs {
		var buf bytes.Buffer
		for _, line := range lines {
			buf.WriteString(line + "\n")
		}
		dump[id] = buf.Bytes()
	}
	return dump, nil
}

func startServer(t *testing.T, run commands.Run) *admin.Server {
	registry := prometheus.NewRegistry()
	collector := metrics.NewLocalnetCollector(registry)
	collector.OnEvent(localnet.Event{Kind: localnet.EventRunState, State: localnet.RunRunning})

	server, err := admin.NewServer(unittest.Logger(), "127.0.0.1:0", registry)
	require.NoError(t, err)
	commands.Register(server, run)

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	server.Start(ctx)
	unittest.RequireCloseBefore(t, server.Ready(), time.Second, "admin server not ready")
	t.Cleanup(func() {
		cancel()
		unittest.RequireCloseBefore(t, server.Done(), 5*time.Second, "admin server not done")
	})
	return server
}

type response struct {
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

func do(t *testing.T, req *http.Request) (int, response) {
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func get(t *testing.T, server *admin.Server, path string) (int, response) {
	req, err := http.NewRequest(http.MethodGet, "http://"+server.Addr()+path, nil)
	require.NoError(t, err)
	return do(t, req)
}

func runCommand(t *testing.T, server *admin.Server, body string) (int, response) {
	req, err := http.NewRequest(http.MethodPost, "http://"+server.Addr()+admin.PathRunCommand, bytes.NewBufferString(body))
	require.NoError(t, err)
	return do(t, req)
}

func TestServer(t *testing.T) {
	run := &fakeRun{logs: map[localnet.NodeID][]string{
		"execution-0": {"one", "two", "three"},
		"consensus-0": {},
	}}
	server := startServer(t, run)

	t.Run("status", func(t *testing.T) {
		code, resp := get(t, server, admin.PathStatus)
		require.Equal(t, http.StatusOK, code)

		var status lifecycle.Status
		require.NoError(t, json.Unmarshal(resp.Output, &status))
		assert.Equal(t, "run-1", status.RunID)
		assert.Equal(t, localnet.RunRunning, status.State)
		require.Len(t, status.Nodes, 2)
		assert.Equal(t, localnet.RoleExecution, status.Nodes[0].Role)
	})

	t.Run("node log", func(t *testing.T) {
		code, resp := get(t, server, "/logs/execution-0?lines=2")
		require.Equal(t, http.StatusOK, code)
		var lines []string
		require.NoError(t, json.Unmarshal(resp.Output, &lines))
		assert.Equal(t, []string{"two", "three"}, lines)

		code, resp = get(t, server, "/logs/consensus-0")
		require.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `[]`, string(resp.Output))
	})

	t.Run("invalid node log requests", func(t *testing.T) {
		code, resp := get(t, server, "/logs/relay-0")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, resp.Error, "no such node")

		code, _ = get(t, server, "/logs/execution-0?lines=0")
		assert.Equal(t, http.StatusBadRequest, code)
		code, _ = get(t, server, "/logs/execution-0?lines=many")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("run command", func(t *testing.T) {
		code, resp := runCommand(t, server, `{"commandName": "dump-logs"}`)
		require.Equal(t, http.StatusOK, code)
		var summary map[string]commands.LogSummary
		require.NoError(t, json.Unmarshal(resp.Output, &summary))
		assert.Equal(t, 14, summary["execution-0"].Bytes)
		assert.Equal(t, "14B", summary["execution-0"].Size)

		code, resp = runCommand(t, server, `{"commandName": "tail-log", "data": {"node": "execution-0", "lines": 1}}`)
		require.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `["three"]`, string(resp.Output))

		code, _ = runCommand(t, server, `{"commandName": "tail-log", "data": 5}`)
		assert.Equal(t, http.StatusBadRequest, code)
		code, _ = runCommand(t, server, `{"commandName": "tail-log", "data": {"node": "execution-0", "lines": 1.5}}`)
		assert.Equal(t, http.StatusBadRequest, code)

		code, resp = runCommand(t, server, `{"commandName": "restart"}`)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Contains(t, resp.Error, "restart")

		code, _ = runCommand(t, server, `not json`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get("http://" + server.Addr() + metrics.Endpoint)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `localnet_run_state{state="running"} 1`)

		// admin requests of the earlier subtests are measured per route
		assert.Contains(t, string(body), "localnet_http_request_duration_seconds")
		assert.Contains(t, string(body), `handler="/status"`)
		assert.Contains(t, string(body), `handler="/logs/{node}"`)
		assert.Contains(t, string(body), `service="admin"`)
	})
}
