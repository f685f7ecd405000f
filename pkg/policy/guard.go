package policy

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/telekom/props-override/pkg/audit"
	"github.com/telekom/props-override/pkg/metrics"
)

// ErrAttestationBlocked is returned by GuardAttestation when key attestation
// must be refused for the current caller.
var ErrAttestationBlocked = errors.New("key attestation blocked")

// CallerInspector reports whether the active call path passes through a
// component whose name contains marker.
type CallerInspector interface {
	Contains(marker string) bool
}

// CallChain is a call path supplied explicitly by the attestation subsystem.
type CallChain []string

func (c CallChain) Contains(marker string) bool {
	for _, frame := range c {
		if strings.Contains(frame, marker) {
			return true
		}
	}
	return false
}

// StackInspector inspects the goroutine's own call stack.
type StackInspector struct {
	// MaxDepth caps the number of frames walked. Zero walks the whole stack.
	MaxDepth int
}

const stackChunk = 64

func (s StackInspector) Contains(marker string) bool {
	frames := runtime.CallersFrames(s.callers())
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.Function, marker) {
			return true
		}
		if !more {
			return false
		}
	}
}

// callers returns the program counters above Contains, growing the buffer
// until the stack fits.
func (s StackInspector) callers() []uintptr {
	if s.MaxDepth > 0 {
		pcs := make([]uintptr, s.MaxDepth)
		return pcs[:runtime.Callers(3, pcs)]
	}
	pcs := make([]uintptr, stackChunk)
	for {
		n := runtime.Callers(3, pcs)
		if n < len(pcs) {
			return pcs[:n]
		}
		pcs = make([]uintptr, 2*len(pcs))
	}
}

// GuardAttestation fails with ErrAttestationBlocked when the caller is the
// privileged services process and the call path contains an attestation
// marker, or when the caller is the package installer. A nil inspector
// never matches.
func (s *State) GuardAttestation(inspector CallerInspector) error {
	if s == nil {
		return nil
	}
	caller := s.decision.Identity.caller()

	reason := ""
	var err error
	switch {
	case s.IsPrivilegedAttestationCaller() && s.reachedFromMarker(inspector):
		reason = "privileged_caller"
		err = fmt.Errorf("%w: %s reached from an attestation component", ErrAttestationBlocked, caller.Process)
	case s.IsPackageInstaller():
		reason = "package_installer"
		err = fmt.Errorf("%w: %s is the package installer", ErrAttestationBlocked, caller.Package)
	}

	if err != nil {
		s.log.Debugw("Blocked key attestation", "package", caller.Package, "process", caller.Process, "reason", reason)
		metrics.AttestationChecks.WithLabelValues("blocked", reason).Inc()
		s.auditor.Emit(context.Background(), audit.NewAttestationEvent(caller, true, reason))
		return err
	}
	metrics.AttestationChecks.WithLabelValues("allowed", "").Inc()
	s.auditor.Emit(context.Background(), audit.NewAttestationEvent(caller, false, ""))
	return nil
}

func (s *State) reachedFromMarker(inspector CallerInspector) bool {
	if inspector == nil {
		return false
	}
	for _, marker := range s.sets.markers {
		if inspector.Contains(marker) {
			return true
		}
	}
	return false
}
