package policy

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/telekom/props-override/pkg/audit"
	"github.com/telekom/props-override/pkg/config"
	"github.com/telekom/props-override/pkg/props"
)

const (
	certFP     = "google/walleye/walleye:8.1.0/OPM1.171019.011/4448085:user/release-keys"
	certDevice = "walleye"
	certModel  = "Pixel 2"
	stockFP    = "vendor/device:13/TQ3A.230901.001/1:user/release-keys"
	spoofModel = "Pixel 7 Pro"
)

func fullOverrides() config.Overrides {
	return config.Overrides{
		CertifiedFingerprint: certFP,
		CertifiedDevice:      certDevice,
		CertifiedModel:       certModel,
		StockFingerprint:     stockFP,
		NetflixSpoofModel:    spoofModel,
	}
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAuditor) Emit(_ context.Context, event *audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAuditor) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestEvaluator(t *testing.T, cfg config.Overrides, sink props.Sink, opts ...Option) *Evaluator {
	t.Helper()
	return NewEvaluator(NewRegistry(cfg, DefaultMatchSets()), sink, zap.NewNop().Sugar(), opts...)
}

func writtenFields(s *props.Store) []props.Field {
	var out []props.Field
	for _, w := range s.Writes() {
		out = append(out, w.Field)
	}
	return out
}
