package metrics

const (
	LabelRole    = "role"
	LabelNode    = "node"
	LabelMode    = "mode"
	LabelState   = "state"
	LabelOutcome = "outcome"
	LabelResult  = "result"
)
