package policy

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telekom/props-override/pkg/audit"
	"github.com/telekom/props-override/pkg/config"
	"github.com/telekom/props-override/pkg/props"
)

func TestGuardAttestation(t *testing.T) {
	droidGuard := CallChain{"com.google.android.gms.droidguard.DroidGuardService", "KeyStore.getCertificateChain"}
	plain := CallChain{"com.google.android.gms.auth.AccountManager"}

	tests := []struct {
		name      string
		id        Identity
		inspector CallerInspector
		blocked   bool
	}{
		{"privileged caller from attestation component", Identity{PackageServices, ProcessUnstable}, droidGuard, true},
		{"privileged caller elsewhere", Identity{PackageServices, ProcessUnstable}, plain, false},
		{"privileged caller without inspector", Identity{PackageServices, ProcessUnstable}, nil, false},
		{"services main process from attestation component", Identity{PackageServices, PackageServices}, droidGuard, false},
		{"installer without marker", Identity{PackageInstaller, PackageInstaller}, nil, true},
		{"installer with marker", Identity{PackageInstaller, PackageInstaller}, droidGuard, true},
		{"ordinary vendor app", Identity{"com.google.android.apps.maps", "com.google.android.apps.maps"}, droidGuard, false},
		{"exempt app", Identity{"com.google.android.youtube", "com.google.android.youtube"}, droidGuard, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestEvaluator(t, fullOverrides(), props.NewStore()).Evaluate(tt.id)
			err := st.GuardAttestation(tt.inspector)
			if tt.blocked {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrAttestationBlocked)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGuardAttestationWithoutCertifiedProfile(t *testing.T) {
	st := newTestEvaluator(t, config.Overrides{}, props.NewStore()).Evaluate(Identity{PackageServices, ProcessUnstable})
	assert.ErrorIs(t, st.GuardAttestation(CallChain{"DroidGuard"}), ErrAttestationBlocked)
}

func TestGuardAttestationCustomMarker(t *testing.T) {
	sets := DefaultMatchSets().Extend(config.Matching{AttestationMarkers: []string{"IntegrityService"}})
	e := NewEvaluator(NewRegistry(fullOverrides(), sets), props.NewStore(), zap.NewNop().Sugar())
	st := e.Evaluate(Identity{PackageServices, ProcessUnstable})

	assert.ErrorIs(t, st.GuardAttestation(CallChain{"x.IntegrityService.run"}), ErrAttestationBlocked)
	assert.ErrorIs(t, st.GuardAttestation(CallChain{"DroidGuard"}), ErrAttestationBlocked)
}

func TestGuardAttestationAudit(t *testing.T) {
	rec := &recordingAuditor{}
	e := newTestEvaluator(t, fullOverrides(), props.NewStore(), WithAuditor(rec))

	installer := e.Evaluate(Identity{PackageInstaller, PackageInstaller})
	require.Error(t, installer.GuardAttestation(nil))
	maps := e.Evaluate(Identity{"com.google.android.apps.maps", "m"})
	require.NoError(t, maps.GuardAttestation(nil))

	types := rec.types()
	assert.Equal(t, []audit.EventType{
		audit.EventOverrideApplied, audit.EventAttestationBlocked,
		audit.EventOverrideApplied, audit.EventAttestationAllowed,
	}, types)
	assert.Equal(t, "package_installer", rec.events[1].Details["reason"])
}

func runThroughDroidGuardService(inspector CallerInspector) bool {
	return inspector.Contains("DroidGuard")
}

func TestStackInspector(t *testing.T) {
	assert.True(t, runThroughDroidGuardService(StackInspector{}))
	assert.False(t, StackInspector{}.Contains("NoSuchComponentOnThisStack"))
	assert.True(t, StackInspector{MaxDepth: 8}.Contains("TestStackInspector"))
}

func deepKeystoreCall(depth int, inspector CallerInspector, st *State) error {
	if depth == 0 {
		return st.GuardAttestation(inspector)
	}
	return deepKeystoreCall(depth-1, inspector, st)
}

func enterDroidGuardAttestation(st *State, depth int, inspector CallerInspector) error {
	return deepKeystoreCall(depth, inspector, st)
}

func TestGuardSeesMarkerBelowDeepStack(t *testing.T) {
	st := newTestEvaluator(t, fullOverrides(), props.NewStore()).Evaluate(Identity{PackageServices, ProcessUnstable})

	for _, depth := range []int{80, 300} {
		err := enterDroidGuardAttestation(st, depth, StackInspector{})
		assert.ErrorIs(t, err, ErrAttestationBlocked, "marker %d frames below the guard", depth)
	}
	assert.NoError(t, deepKeystoreCall(300, StackInspector{}, st))
}

func TestStackInspectorMaxDepthCaps(t *testing.T) {
	st := newTestEvaluator(t, fullOverrides(), props.NewStore()).Evaluate(Identity{PackageServices, ProcessUnstable})

	assert.NoError(t, enterDroidGuardAttestation(st, 100, StackInspector{MaxDepth: 16}))
	assert.ErrorIs(t, enterDroidGuardAttestation(st, 4, StackInspector{MaxDepth: 16}), ErrAttestationBlocked)
}

func TestGuardWithStackInspector(t *testing.T) {
	st := newTestEvaluator(t, fullOverrides(), props.NewStore()).Evaluate(Identity{PackageServices, ProcessUnstable})
	err := func() error {
		return guardFromDroidGuard(st)
	}()
	assert.True(t, errors.Is(err, ErrAttestationBlocked))
	assert.NoError(t, st.GuardAttestation(StackInspector{}))
}

func guardFromDroidGuard(st *State) error {
	return st.GuardAttestation(StackInspector{})
}

func TestNilStateIsPassThrough(t *testing.T) {
	var st *State
	assert.NoError(t, st.GuardAttestation(CallChain{"DroidGuard"}))
	assert.True(t, st.FilterFeature("PIXEL_2019_PRELOAD", true))
	assert.False(t, st.IsPhotosApp())
	assert.Equal(t, RuleNone, st.Decision().Rule)
}

func TestGuardConcurrentReads(t *testing.T) {
	st := newTestEvaluator(t, fullOverrides(), props.NewStore()).Evaluate(Identity{PackageServices, ProcessUnstable})
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.GuardAttestation(CallChain{"DroidGuard"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.ErrorIs(t, err, ErrAttestationBlocked)
	}
}
