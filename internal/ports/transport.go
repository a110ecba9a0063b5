package ports

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"
)

// Outcome classifies how a transmission ended.
type Outcome int

const (
	// OutcomeSuccess means the collector answered with a 2xx or 3xx status.
	OutcomeSuccess Outcome = iota

	// OutcomeFailure means the collector answered with a status of 400 or more.
	OutcomeFailure

	// OutcomeTimeout means the request was aborted by its deadline.
	OutcomeTimeout

	// OutcomeAmbiguous means the request ended without a status, for
	// example a refused connection.
	OutcomeAmbiguous
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Request is one outbound POST to the collector.
type Request struct {
	// URL is the fully qualified endpoint including the tp2 path.
	URL string

	// Events is the batch, serialized as a JSON array.
	Events []json.RawMessage

	// SecureCredentials attaches cookies for the collector when set.
	SecureCredentials bool

	// APIKey is sent as x-api-key when not empty.
	APIKey string
}

// Result is the terminal resolution of a Request.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Err        error
}

// Transport transmits event batches to the collector.
type Transport interface {
	// Send issues exactly one POST and reports how it ended. It returns when
	// the collector answers, the request fails, or ctx is done.
	Send(ctx context.Context, req Request) Result
}

// HTTPClient is what the HTTP transport sends requests with. *http.Client
// satisfies it; tests substitute canned responses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
