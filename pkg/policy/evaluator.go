package policy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/telekom/props-override/pkg/audit"
	"github.com/telekom/props-override/pkg/metrics"
	"github.com/telekom/props-override/pkg/props"
)

// Identity is the package and process name of the application being
// evaluated. An unknown process is the empty string.
type Identity struct {
	Package string `json:"package" yaml:"package"`
	Process string `json:"process" yaml:"process"`
}

func (id Identity) privileged() bool {
	return id.Package == PackageServices && id.Process == ProcessUnstable
}

func (id Identity) caller() audit.Caller {
	return audit.Caller{Package: id.Package, Process: id.Process}
}

// Rule names the link of the priority chain that matched.
type Rule int

const (
	RuleNone Rule = iota
	RuleExempt
	RuleCertified
	RulePhotos
	RuleStockFingerprint
	RuleModel
	RuleDefault
)

var ruleNames = map[Rule]string{
	RuleNone:             "none",
	RuleExempt:           "exempt",
	RuleCertified:        "certified",
	RulePhotos:           "photos",
	RuleStockFingerprint: "stock_fingerprint",
	RuleModel:            "model",
	RuleDefault:          "default",
}

func (r Rule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return "unknown"
}

func (r Rule) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rule) UnmarshalText(text []byte) error {
	for rule, name := range ruleNames {
		if name == string(text) {
			*r = rule
			return nil
		}
	}
	return fmt.Errorf("unknown rule %q", text)
}

// Decision is the immutable outcome of one evaluation.
type Decision struct {
	Identity Identity
	Rule     Rule
	Profile  props.Profile
	Written  []props.Field
	Failed   []props.Field
}

// Auditor receives decision events. *audit.Manager satisfies it, including
// a nil manager.
type Auditor interface {
	Emit(ctx context.Context, event *audit.Event)
}

type nopAuditor struct{}

func (nopAuditor) Emit(context.Context, *audit.Event) {}

// State is the result of evaluating one caller identity. The decision is
// fixed; the derived flags are atomics so that guard and filter queries can
// run on any goroutine once Evaluate has returned.
//
// A nil *State answers every query as pass-through.
type State struct {
	decision Decision
	sets     MatchSets
	auditor  Auditor
	log      *zap.SugaredLogger

	privilegedCaller atomic.Bool
	packageInstaller atomic.Bool
	photosApp        atomic.Bool
}

// Decision returns a copy of the evaluation outcome.
func (s *State) Decision() Decision {
	if s == nil {
		return Decision{Rule: RuleNone}
	}
	d := s.decision
	d.Written = append([]props.Field(nil), d.Written...)
	d.Failed = append([]props.Field(nil), d.Failed...)
	return d
}

func (s *State) IsPrivilegedAttestationCaller() bool {
	return s != nil && s.privilegedCaller.Load()
}

func (s *State) IsPackageInstaller() bool {
	return s != nil && s.packageInstaller.Load()
}

func (s *State) IsPhotosApp() bool {
	return s != nil && s.photosApp.Load()
}

// Flags is a point-in-time copy of the derived caller flags.
type Flags struct {
	PrivilegedAttestationCaller bool `json:"privilegedAttestationCaller" yaml:"privilegedAttestationCaller"`
	PackageInstaller            bool `json:"packageInstaller" yaml:"packageInstaller"`
	PhotosApp                   bool `json:"photosApp" yaml:"photosApp"`
}

func (s *State) Flags() Flags {
	return Flags{
		PrivilegedAttestationCaller: s.IsPrivilegedAttestationCaller(),
		PackageInstaller:            s.IsPackageInstaller(),
		PhotosApp:                   s.IsPhotosApp(),
	}
}

var unavailableSink = props.SinkFunc(func(field props.Field, _ props.Value) error {
	return fmt.Errorf("set %s: no sink: %w", field, props.ErrFieldUnavailable)
})

// Evaluator applies the selected profile for a caller to an identity sink.
type Evaluator struct {
	registry *Registry
	sink     props.Sink
	log      *zap.SugaredLogger
	auditor  Auditor
}

type Option func(*Evaluator)

// WithAuditor routes decision events to a.
func WithAuditor(a Auditor) Option {
	return func(e *Evaluator) {
		if a != nil {
			e.auditor = a
		}
	}
}

// NewEvaluator creates an evaluator writing to sink. A nil log discards
// output; a nil sink rejects every field with props.ErrFieldUnavailable.
func NewEvaluator(registry *Registry, sink props.Sink, log *zap.SugaredLogger, opts ...Option) *Evaluator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if sink == nil {
		sink = unavailableSink
	}
	e := &Evaluator{registry: registry, sink: sink, log: log, auditor: nopAuditor{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// Evaluate selects at most one profile for id, writes its fields to the sink
// and derives the caller flags. A field the sink rejects is logged and
// skipped; the remaining fields are still written. Evaluate never fails.
func (e *Evaluator) Evaluate(id Identity) *State {
	ctx := context.Background()
	rule, profile := e.registry.Select(id)
	st := &State{
		decision: Decision{Identity: id, Rule: rule, Profile: profile},
		sets:     e.registry.Sets(),
		auditor:  e.auditor,
		log:      e.log,
	}
	metrics.Evaluations.WithLabelValues(rule.String()).Inc()

	if rule == RuleExempt {
		e.log.Debugw("Caller exempt from overrides", "package", id.Package, "process", id.Process)
		e.auditor.Emit(ctx, audit.NewOverrideEvent(audit.EventOverrideExempt, id.caller(), rule.String(), "", nil))
		return st
	}

	st.privilegedCaller.Store(id.privileged())
	st.packageInstaller.Store(id.Package == PackageInstaller)
	st.photosApp.Store(rule == RulePhotos)

	if profile.IsEmpty() {
		e.log.Debugw("No override for caller", "package", id.Package, "process", id.Process)
		e.auditor.Emit(ctx, audit.NewOverrideEvent(audit.EventOverrideNone, id.caller(), rule.String(), "", nil))
		return st
	}

	e.log.Debugw("Spoofing build for caller", "package", id.Package, "process", id.Process, "rule", rule.String(), "profile", profile.Name())
	for _, entry := range profile.Entries() {
		if err := e.sink.SetField(entry.Field, entry.Value); err != nil {
			st.decision.Failed = append(st.decision.Failed, entry.Field)
			metrics.FieldWriteFailures.WithLabelValues(profile.Name(), entry.Field.String()).Inc()
			if errors.Is(err, props.ErrFieldUnavailable) {
				e.log.Errorw("Identity field unavailable, skipping", "field", entry.Field, "profile", profile.Name(), "error", err)
			} else {
				e.log.Errorw("Failed to write identity field, skipping", "field", entry.Field, "profile", profile.Name(), "error", err)
			}
			e.auditor.Emit(ctx, audit.NewFieldUnavailableEvent(id.caller(), profile.Name(), entry.Field.String(), err))
			continue
		}
		st.decision.Written = append(st.decision.Written, entry.Field)
		metrics.FieldWrites.WithLabelValues(profile.Name(), entry.Field.String()).Inc()
		e.log.Debugw("Defining field", "field", entry.Field, "value", entry.Value.String())
	}

	written := make([]string, 0, len(st.decision.Written))
	for _, f := range st.decision.Written {
		written = append(written, f.String())
	}
	e.auditor.Emit(ctx, audit.NewOverrideEvent(audit.EventOverrideApplied, id.caller(), rule.String(), profile.Name(), written))
	return st
}
