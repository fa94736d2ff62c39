package picker

import "context"

// Status filters the entries a Provider lists.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusPublish Status = "publish"
	StatusAny     Status = "any"
)

// Unbounded asks the Provider for every matching entry.
const Unbounded = -1

// Provider is the interface for data sources that supply options to the picker.
type Provider interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// Request describes what options the picker wants from a Provider.
type Request struct {
	RequestID uint64 // Must be echoed back in Response
	Status    Status
	PageSize  int // Positive, or Unbounded
}

// Response carries options back from a Provider.
type Response struct {
	RequestID uint64
	Options   []Option
}

// CommitSink durably stores the user's final selection. Implementations must
// tolerate being called more than once with the same Selection.
type CommitSink interface {
	Commit(ctx context.Context, sel Selection) error
}

// CommitFunc adapts a plain function to CommitSink.
type CommitFunc func(ctx context.Context, sel Selection) error

// Commit implements CommitSink.
func (f CommitFunc) Commit(ctx context.Context, sel Selection) error {
	return f(ctx, sel)
}

// Record is the current full content of a committed entry.
type Record struct {
	ID      int64
	Title   string
	Content string // HTML
}

// Resolver returns the current content for a committed id.
type Resolver interface {
	Resolve(ctx context.Context, id int64) (Record, error)
}
