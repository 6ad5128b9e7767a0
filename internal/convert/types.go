package convert

import "context"

// State of one conversion batch as reported by the external service.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Status is a point-in-time poll result for a batch.
type Status struct {
	State          State
	ResultLocation string
	ErrMsg         string
}

// NamedAsset is a side file (figure, table image) produced by conversion.
type NamedAsset struct {
	Name string
	Data []byte
}

// Result is the fetched conversion output: primary markdown plus assets.
type Result struct {
	Content string
	Assets  []NamedAsset
}

// Converter is the external document-conversion contract. The orchestrator
// owns the poll loop; a failed state and any transport error during Submit or
// Fetch are both terminal for the conversion stage.
type Converter interface {
	Submit(ctx context.Context, filename string, data []byte, refID string) (batchID string, err error)
	PollStatus(ctx context.Context, batchID string) (Status, error)
	Fetch(ctx context.Context, location string) (*Result, error)
}
