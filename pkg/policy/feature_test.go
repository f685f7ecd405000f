package policy

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/telekom/props-override/pkg/audit"
	"github.com/telekom/props-override/pkg/config"
	"github.com/telekom/props-override/pkg/metrics"
	"github.com/telekom/props-override/pkg/props"
)

func TestFilterFeaturePhotos(t *testing.T) {
	st := newTestEvaluator(t, fullOverrides(), props.NewStore()).Evaluate(Identity{PackagePhotos, PackagePhotos})

	tests := []struct {
		feature string
		def     bool
		want    bool
	}{
		{"PIXEL_2019_PRELOAD", true, false},
		{"com.google.android.feature.PIXEL_2021_EXPERIENCE", true, false},
		{"com.google.android.feature.PIXEL_2020_MIDYEAR_EXPERIENCE", true, false},
		{"UNRELATED_FEATURE", true, true},
		{"PIXEL_2019_PRELOAD", false, false},
		{"UNRELATED_FEATURE", false, false},
		{"pixel_2019_preload", true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, st.FilterFeature(tt.feature, tt.def), "%s default=%v", tt.feature, tt.def)
	}
}

func TestFilterFeatureOnlyForPhotos(t *testing.T) {
	for _, id := range []Identity{
		{"com.google.android.apps.maps", "m"},
		{PackageServices, ProcessUnstable},
		{"com.google.android.dialer", "d"},
	} {
		st := newTestEvaluator(t, fullOverrides(), props.NewStore()).Evaluate(id)
		assert.True(t, st.FilterFeature("PIXEL_2019_PRELOAD", true), id.Package)
	}
}

func TestFilterFeatureExtendedBlacklist(t *testing.T) {
	sets := DefaultMatchSets().Extend(config.Matching{FeatureBlacklist: []string{"PIXEL_2022_EXPERIENCE"}})
	rec := &recordingAuditor{}
	e := NewEvaluator(NewRegistry(config.Overrides{}, sets), props.NewStore(), zap.NewNop().Sugar(), WithAuditor(rec))
	st := e.Evaluate(Identity{PackagePhotos, PackagePhotos})

	assert.False(t, st.FilterFeature("com.google.android.feature.PIXEL_2022_EXPERIENCE", true))
	assert.Equal(t, audit.EventFeatureSuppressed, rec.events[len(rec.events)-1].Type)
	assert.Equal(t, "PIXEL_2022_EXPERIENCE", rec.events[len(rec.events)-1].Details["matched"])
}

func TestFilterFeatureCountsEveryQuery(t *testing.T) {
	passed := metrics.FeatureQueries.WithLabelValues("passed")
	suppressed := metrics.FeatureQueries.WithLabelValues("suppressed")
	beforePassed := testutil.ToFloat64(passed)
	beforeSuppressed := testutil.ToFloat64(suppressed)

	maps := newTestEvaluator(t, fullOverrides(), props.NewStore()).Evaluate(Identity{"com.google.android.apps.maps", "m"})
	photos := newTestEvaluator(t, fullOverrides(), props.NewStore()).Evaluate(Identity{PackagePhotos, PackagePhotos})
	var uninitialized *State

	assert.True(t, maps.FilterFeature("PIXEL_2019_PRELOAD", true))
	assert.False(t, photos.FilterFeature("PIXEL_2019_PRELOAD", false))
	assert.True(t, photos.FilterFeature("UNRELATED_FEATURE", true))
	assert.True(t, uninitialized.FilterFeature("PIXEL_2019_PRELOAD", true))
	assert.False(t, photos.FilterFeature("PIXEL_2019_PRELOAD", true))

	assert.Equal(t, beforePassed+4, testutil.ToFloat64(passed))
	assert.Equal(t, beforeSuppressed+1, testutil.ToFloat64(suppressed))
}
