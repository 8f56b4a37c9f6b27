package policy

// Snapshot is the persisted form of a policy's learned parameters. Tabular
// policies fill Table; approximated policies store their estimators as opaque
// gonum binary blobs.
type Snapshot struct {
	Kind        string            `json:"kind"`
	Exploration float64           `json:"exploration"`
	Schedule    Schedule          `json:"schedule"`
	Table       []TableEntry      `json:"table,omitempty"`
	Live        map[string][]byte `json:"live,omitempty"`
	Target      map[string][]byte `json:"target,omitempty"`
	Episodes    int               `json:"episodes,omitempty"`
}
