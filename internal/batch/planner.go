// Package batch plans which prefix of the queue goes into the next POST.
package batch

import (
	json "github.com/goccy/go-json"

	"github.com/bft-labs/outqueue/internal/domain"
)

// SelectBatch returns how many envelopes from the head of q fit in one
// request. It accumulates Bytes and stops as soon as including the next
// envelope would make the running total reach or exceed maxBytes. The
// prefix also ends before the first malformed envelope so compaction can
// remove it once it reaches the head.
//
// The result is 0 when the head alone reaches the budget. Such envelopes
// are handled by the caller.
func SelectBatch(q domain.Queue, maxBytes int) int {
	count := 0
	total := 0
	for count < len(q) {
		if !q[count].Valid() {
			break
		}
		total += q[count].Bytes
		if total >= maxBytes {
			break
		}
		count++
	}
	return count
}

// Plan is a selected prefix ready to be sent.
type Plan struct {
	// Count is the number of envelopes covered by the plan.
	Count int

	// Bytes is the summed wire size of the planned envelopes.
	Bytes int

	// Payloads holds the raw events in queue order.
	Payloads []json.RawMessage

	// Oversize is set when the head alone exceeded the budget and was
	// planned as a single-event request.
	Oversize bool
}

// Empty returns true if the plan covers no envelopes.
func (p Plan) Empty() bool {
	return p.Count == 0
}

// NewPlan selects the next batch of q. A valid head that alone reaches the
// budget (left behind by a run with a larger limit) is planned on its own
// so it cannot block the queue.
func NewPlan(q domain.Queue, maxBytes int) Plan {
	n := SelectBatch(q, maxBytes)
	oversize := false
	if n == 0 && len(q) > 0 && q[0].Valid() {
		n = 1
		oversize = true
	}
	return Plan{
		Count:    n,
		Bytes:    q[:n].TotalBytes(),
		Payloads: q.Payloads(n),
		Oversize: oversize,
	}
}
