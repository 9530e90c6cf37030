package topology

import (
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/onflow/localnet/model/localnet"
)

// CheckPorts test-binds every planned port on the topology host. Busy ports are reported together as
// localnet.ErrInvalidParams, before any process is started.
func CheckPorts(topo *localnet.Topology) error {
	var errs *multierror.Error
	for _, node := range topo.Nodes {
		ports := node.Ports.All()
		names := make([]string, 0, len(ports))
		for name := range ports {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			port := ports[name]
			if err := checkPort(topo.Host, port, name == "p2p"); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("node %s: %s port %d unavailable: %w", node.ID, name, port, err))
			}
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return localnet.NewInvalidParamsErrorf("port preflight failed: %v", err)
	}
	return nil
}

// checkPort binds the port over tcp, and over udp too for discovery ports.
func checkPort(host string, port int, udp bool) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	_ = listener.Close()

	if !udp {
		return nil
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
