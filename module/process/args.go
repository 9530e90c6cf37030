package process

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/onflow/localnet/model/localnet"
)

// TemplateData is available to argument, init and env templates of a node.
type TemplateData struct {
	Host    string
	Node    localnet.NodeSpec
	Genesis localnet.GenesisSpec
	// Execution is the paired execution node of a consensus node, nil otherwise.
	Execution *localnet.Endpoint
	// Relay is the builder relay of a consensus node in blinded mode, nil otherwise.
	Relay *localnet.Endpoint
	// Bootnodes holds the discovered identities of the node's boot nodes.
	Bootnodes []string
}

// NewTemplateData resolves the dependencies of a node. Every dependency must already be in resolved,
// which only holds endpoints of healthy nodes.
func NewTemplateData(host string, spec localnet.NodeSpec, genesis localnet.GenesisSpec, resolved map[localnet.NodeID]*localnet.Endpoint) (*TemplateData, error) {
	data := &TemplateData{
		Host:    host,
		Node:    spec,
		Genesis: genesis,
	}

	for _, dep := range spec.DependsOn {
		endpoint, ok := resolved[dep.Node]
		if !ok {
			return nil, fmt.Errorf("dependency %s of node %s is not resolved", dep.Node, spec.ID)
		}
		switch dep.Kind {
		case localnet.DependencyEngine:
			data.Execution = endpoint
		case localnet.DependencyBuilder:
			data.Relay = endpoint
		case localnet.DependencyBootnode:
			if endpoint.Identity != "" {
				data.Bootnodes = append(data.Bootnodes, endpoint.Identity)
			}
		}
	}
	return data, nil
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

// Render renders every template with the given data. Elements rendering to an empty string are
// dropped, so optional flags can be written as {{if ...}}--flag{{end}}.
func Render(templates []string, data *TemplateData) ([]string, error) {
	rendered := make([]string, 0, len(templates))
	for i, text := range templates {
		tmpl, err := template.New(fmt.Sprintf("arg-%d", i)).
			Funcs(funcs).
			Option("missingkey=error").
			Parse(text)
		if err != nil {
			return nil, fmt.Errorf("could not parse template %q: %w", text, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("could not render template %q: %w", text, err)
		}
		if buf.Len() > 0 {
			rendered = append(rendered, buf.String())
		}
	}
	return rendered, nil
}
