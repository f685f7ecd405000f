package policy

import (
	"context"

	"github.com/telekom/props-override/pkg/audit"
	"github.com/telekom/props-override/pkg/metrics"
)

// FilterFeature returns false for a feature the photos profile must not
// report, and def otherwise. Every query is counted by outcome.
func (s *State) FilterFeature(name string, def bool) bool {
	if s == nil || !def || !s.IsPhotosApp() {
		metrics.FeatureQueries.WithLabelValues("passed").Inc()
		return def
	}
	matched, ok := s.sets.BlacklistMatch(name)
	if !ok {
		metrics.FeatureQueries.WithLabelValues("passed").Inc()
		return def
	}
	metrics.FeatureQueries.WithLabelValues("suppressed").Inc()
	s.log.Debugw("Suppressing feature", "feature", name, "matched", matched)
	s.auditor.Emit(context.Background(), audit.NewFeatureSuppressedEvent(s.decision.Identity.caller(), name, matched))
	return false
}
