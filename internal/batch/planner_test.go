package batch

import (
	"fmt"
	"math/rand"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/bft-labs/outqueue/internal/domain"
)

func queueOfSizes(sizes ...int) domain.Queue {
	q := make(domain.Queue, len(sizes))
	for i, s := range sizes {
		q[i] = domain.Envelope{Event: json.RawMessage(fmt.Sprintf(`{"i":%d}`, i)), Bytes: s}
	}
	return q
}

func TestSelectBatch(t *testing.T) {
	tests := []struct {
		name     string
		sizes    []int
		maxBytes int
		want     int
	}{
		{"empty queue", nil, 100, 0},
		{"all fit", []int{10, 20, 30}, 100, 3},
		{"stops before reaching budget", []int{40, 40, 40}, 100, 2},
		{"exact budget is excluded", []int{50, 50}, 100, 1},
		{"head alone reaches budget", []int{100, 1}, 100, 0},
		{"head alone exceeds budget", []int{150}, 100, 0},
		{"just under budget", []int{33, 33, 33}, 100, 3},
		{"zero sized events", []int{0, 0, 0}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectBatch(queueOfSizes(tt.sizes...), tt.maxBytes); got != tt.want {
				t.Errorf("SelectBatch(%v, %d) = %d, want %d", tt.sizes, tt.maxBytes, got, tt.want)
			}
		})
	}
}

func TestSelectBatch_StopsAtMalformedEntry(t *testing.T) {
	q := queueOfSizes(10, 10, 10)
	q[1] = domain.Envelope{Bytes: -1}

	if got := SelectBatch(q, 1000); got != 1 {
		t.Fatalf("SelectBatch = %d, want 1", got)
	}
}

// The selected prefix is the longest one whose total stays under the budget.
func TestSelectBatch_MaximalPrefixUnderBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		sizes := make([]int, rng.Intn(20))
		for i := range sizes {
			sizes[i] = rng.Intn(60)
		}
		budget := 1 + rng.Intn(200)
		q := queueOfSizes(sizes...)

		n := SelectBatch(q, budget)
		if sum := q[:n].TotalBytes(); n > 0 && sum >= budget {
			t.Fatalf("sizes=%v budget=%d: prefix %d sums to %d", sizes, budget, n, sum)
		}
		if n < len(q) && q[:n+1].TotalBytes() < budget {
			t.Fatalf("sizes=%v budget=%d: prefix %d is not maximal", sizes, budget, n)
		}
	}
}

func TestNewPlan(t *testing.T) {
	q := queueOfSizes(30, 30, 30)
	p := NewPlan(q, 70)

	if p.Count != 2 || p.Bytes != 60 || p.Oversize {
		t.Fatalf("plan = %+v", p)
	}
	if len(p.Payloads) != 2 || string(p.Payloads[0]) != `{"i":0}` || string(p.Payloads[1]) != `{"i":1}` {
		t.Errorf("payloads = %s", p.Payloads)
	}
}

func TestNewPlan_OversizeHead(t *testing.T) {
	p := NewPlan(queueOfSizes(500, 10), 100)

	if p.Count != 1 || !p.Oversize {
		t.Fatalf("plan = %+v, want single oversize event", p)
	}
}

func TestNewPlan_Empty(t *testing.T) {
	if p := NewPlan(nil, 100); !p.Empty() {
		t.Fatalf("plan of empty queue = %+v", p)
	}
}
