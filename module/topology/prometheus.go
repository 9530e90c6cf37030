package topology

import (
	"fmt"
	"net"
	"strconv"

	"github.com/onflow/localnet/model/localnet"
	ioutils "github.com/onflow/localnet/utils/io"
)

// PrometheusJob is the job label of every scraped node.
const PrometheusJob = "localnet"

// PrometheusServiceDiscovery is the content of a Prometheus file_sd targets file.
type PrometheusServiceDiscovery []PrometheusTargetList

type PrometheusTargetList struct {
	Targets []string          `json:"targets"`
	Labels  map[string]string `json:"labels"`
}

func newPrometheusTargetList(role localnet.Role, runID string) PrometheusTargetList {
	return PrometheusTargetList{
		Targets: make([]string, 0),
		Labels: map[string]string{
			"job":    PrometheusJob,
			"role":   role.String(),
			"run_id": runID,
		},
	}
}

// ServiceDiscovery groups the metrics endpoints of all nodes by role.
func ServiceDiscovery(topo *localnet.Topology) PrometheusServiceDiscovery {
	targets := make(map[localnet.Role]PrometheusTargetList)
	for _, role := range localnet.Roles() {
		targets[role] = newPrometheusTargetList(role, topo.RunID)
	}

	for _, node := range topo.Nodes {
		if node.Ports.Metrics == 0 {
			continue
		}
		list := targets[node.Role]
		list.Targets = append(list.Targets, net.JoinHostPort(topo.Host, strconv.Itoa(node.Ports.Metrics)))
		targets[node.Role] = list
	}

	var sd PrometheusServiceDiscovery
	for _, role := range localnet.Roles() {
		if len(targets[role].Targets) > 0 {
			sd = append(sd, targets[role])
		}
	}
	return sd
}

// WritePrometheusTargets writes the file_sd targets of the topology to path.
func WritePrometheusTargets(path string, topo *localnet.Topology) error {
	if err := ioutils.WriteJSON(path, ServiceDiscovery(topo)); err != nil {
		return fmt.Errorf("could not write prometheus targets: %w", err)
	}
	return nil
}
