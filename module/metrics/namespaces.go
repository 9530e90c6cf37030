package metrics

const (
	namespaceLocalnet = "localnet"
)

const (
	subsystemRun  = "run"
	subsystemNode = "node"
)
