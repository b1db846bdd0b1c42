// Package reduce defines the collective-sum primitive used to combine map
// accumulators held by independent workers.
//
// The reduction is one-shot and blocking: every participating worker calls
// the same operation with a congruent vector, and every call returns the
// element-wise global sum. There are no partial-failure semantics; a worker
// that cannot complete the collective aborts the run.
package reduce

import (
	"fmt"
	"sync"
)

// Reducer is the contract for a collective element-wise sum across all
// workers of a group. Implementations must return a fresh slice and leave
// the input untouched.
type Reducer interface {
	AllSumFloat64(vals []float64) ([]float64, error)
	AllSumInt64(vals []int64) ([]int64, error)
}

// Local is the single-worker Reducer: the global sum of one participant is
// its own contribution.
type Local struct{}

func (Local) AllSumFloat64(vals []float64) ([]float64, error) {
	out := make([]float64, len(vals))
	copy(out, vals)
	return out, nil
}

func (Local) AllSumInt64(vals []int64) ([]int64, error) {
	out := make([]int64, len(vals))
	copy(out, vals)
	return out, nil
}

// group performs blocking in-process collective sums between n members.
// Each reduction round completes once all members have contributed.
type group struct {
	n  int
	mu sync.Mutex

	fRound *fRound
	iRound *iRound
}

type fRound struct {
	sum  []float64
	seen int
	done chan struct{}
	err  error
}

type iRound struct {
	sum  []int64
	seen int
	done chan struct{}
	err  error
}

// member is one worker's handle on a shared group.
type member struct {
	g *group
}

// NewGroup returns n Reducer handles sharing one collective context. Every
// member of a round must call the same operation with a vector of the same
// length; the call blocks until the round completes.
func NewGroup(n int) ([]Reducer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("reduce: group size must be positive, got %d", n)
	}
	g := &group{n: n}
	members := make([]Reducer, n)
	for i := range members {
		members[i] = &member{g: g}
	}
	return members, nil
}

func (m *member) AllSumFloat64(vals []float64) ([]float64, error) {
	g := m.g
	g.mu.Lock()
	if g.fRound == nil {
		g.fRound = &fRound{sum: make([]float64, len(vals)), done: make(chan struct{})}
	}
	r := g.fRound
	if len(vals) != len(r.sum) {
		r.err = fmt.Errorf("reduce: incongruent vector length %d, round started with %d",
			len(vals), len(r.sum))
	} else {
		for i, v := range vals {
			r.sum[i] += v
		}
	}
	r.seen++
	if r.seen == g.n {
		g.fRound = nil
		close(r.done)
	}
	g.mu.Unlock()

	<-r.done
	if r.err != nil {
		return nil, r.err
	}
	out := make([]float64, len(r.sum))
	copy(out, r.sum)
	return out, nil
}

func (m *member) AllSumInt64(vals []int64) ([]int64, error) {
	g := m.g
	g.mu.Lock()
	if g.iRound == nil {
		g.iRound = &iRound{sum: make([]int64, len(vals)), done: make(chan struct{})}
	}
	r := g.iRound
	if len(vals) != len(r.sum) {
		r.err = fmt.Errorf("reduce: incongruent vector length %d, round started with %d",
			len(vals), len(r.sum))
	} else {
		for i, v := range vals {
			r.sum[i] += v
		}
	}
	r.seen++
	if r.seen == g.n {
		g.iRound = nil
		close(r.done)
	}
	g.mu.Unlock()

	<-r.done
	if r.err != nil {
		return nil, r.err
	}
	out := make([]int64, len(r.sum))
	copy(out, r.sum)
	return out, nil
}
