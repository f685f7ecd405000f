package policy

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrIdentityChanged is returned by Process.Init when the process was
// already initialized for a different identity.
var ErrIdentityChanged = errors.New("process already initialized for a different identity")

// Process holds the single State of a process that hosts exactly one
// application identity. Init is the only writer; queries may come from any
// goroutine and see either no state (pass-through) or the final one.
type Process struct {
	mu    sync.Mutex
	state atomic.Pointer[State]
}

// Init evaluates id once. Repeated calls with the same identity return the
// stored state without writing to the sink again.
func (p *Process) Init(e *Evaluator, id Identity) (*State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st := p.state.Load(); st != nil {
		if st.decision.Identity != id {
			return st, fmt.Errorf("%w: have %s/%s, got %s/%s", ErrIdentityChanged,
				st.decision.Identity.Package, st.decision.Identity.Process, id.Package, id.Process)
		}
		return st, nil
	}
	st := e.Evaluate(id)
	p.state.Store(st)
	return st, nil
}

// State returns the stored state, or nil before Init.
func (p *Process) State() *State {
	return p.state.Load()
}

func (p *Process) GuardAttestation(inspector CallerInspector) error {
	return p.state.Load().GuardAttestation(inspector)
}

func (p *Process) FilterFeature(name string, def bool) bool {
	return p.state.Load().FilterFeature(name, def)
}
