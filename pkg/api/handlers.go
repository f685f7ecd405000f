package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telekom/props-override/pkg/apiresponses"
	"github.com/telekom/props-override/pkg/policy"
	"github.com/telekom/props-override/pkg/props"
	"github.com/telekom/props-override/pkg/system"
	"github.com/telekom/props-override/pkg/version"
)

// EvaluateRequest asks for the decision for one caller. Features and
// CallChain optionally run the feature filter and attestation guard in the
// same caller context.
type EvaluateRequest struct {
	Package   string   `json:"package"`
	Process   string   `json:"process"`
	Features  []string `json:"features,omitempty"`
	CallChain []string `json:"callChain,omitempty"`
}

func (r EvaluateRequest) identity() policy.Identity {
	return policy.Identity{Package: r.Package, Process: r.Process}
}

type AttestationResult struct {
	Allowed bool   `json:"allowed" yaml:"allowed"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// EvaluateResponse describes the decision and the writes it caused.
type EvaluateResponse struct {
	Identity    policy.Identity    `json:"identity" yaml:"identity"`
	Rule        policy.Rule        `json:"rule" yaml:"rule"`
	Profile     string             `json:"profile,omitempty" yaml:"profile,omitempty"`
	Writes      []props.Entry      `json:"writes" yaml:"writes"`
	Failed      []props.Field      `json:"failed,omitempty" yaml:"failed,omitempty"`
	Flags       policy.Flags       `json:"flags" yaml:"flags"`
	Features    map[string]bool    `json:"features,omitempty" yaml:"features,omitempty"`
	Attestation *AttestationResult `json:"attestation,omitempty" yaml:"attestation,omitempty"`
}

// NewEvaluateResponse builds the response from a state and the store it
// was evaluated against.
func NewEvaluateResponse(st *policy.State, store *props.Store) EvaluateResponse {
	d := st.Decision()
	return EvaluateResponse{
		Identity: d.Identity,
		Rule:     d.Rule,
		Profile:  d.Profile.Name(),
		Writes:   store.Writes(),
		Failed:   d.Failed,
		Flags:    st.Flags(),
	}
}

// Attest runs the guard and reports the outcome.
func Attest(st *policy.State, chain []string) *AttestationResult {
	if err := st.GuardAttestation(policy.CallChain(chain)); err != nil {
		return &AttestationResult{Allowed: false, Reason: err.Error()}
	}
	return &AttestationResult{Allowed: true}
}

type FeatureRequest struct {
	Package string `json:"package"`
	Process string `json:"process"`
	Feature string `json:"feature" binding:"required"`
	// Default is the host's answer. Omitted means true.
	Default *bool `json:"default,omitempty"`
}

type FeatureResponse struct {
	Feature string `json:"feature"`
	Default bool   `json:"default"`
	Result  bool   `json:"result"`
}

type AttestationRequest struct {
	Package   string   `json:"package"`
	Process   string   `json:"process"`
	CallChain []string `json:"callChain,omitempty"`
}

type ProfileView struct {
	Name    string        `json:"name" yaml:"name"`
	Entries []props.Entry `json:"entries" yaml:"entries"`
}

func NewProfileView(p props.Profile) ProfileView {
	return ProfileView{Name: p.Name(), Entries: p.Entries()}
}

type MatchSetsView struct {
	ExemptPackages     []string `json:"exemptPackages" yaml:"exemptPackages"`
	ExtraPackages      []string `json:"extraPackages" yaml:"extraPackages"`
	FeatureBlacklist   []string `json:"featureBlacklist" yaml:"featureBlacklist"`
	AttestationMarkers []string `json:"attestationMarkers" yaml:"attestationMarkers"`
}

func NewMatchSetsView(m policy.MatchSets) MatchSetsView {
	return MatchSetsView{
		ExemptPackages:     m.ExemptPackages(),
		ExtraPackages:      m.ExtraPackages(),
		FeatureBlacklist:   m.FeatureBlacklist(),
		AttestationMarkers: m.AttestationMarkers(),
	}
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Version version.BuildInfo `json:"version"`
}

// evaluate runs one caller context against a fresh store.
func (s *Server) evaluate(c *gin.Context, id policy.Identity) (*policy.State, *props.Store) {
	log := system.WithCaller(system.GetReqLogger(c, s.log.Sugar()), id.Package, id.Process)
	store := props.NewStore()
	eval := policy.NewEvaluator(s.registry, store, log, policy.WithAuditor(s.auditor))
	return eval.Evaluate(id), store
}

func (s *Server) postEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid evaluate request", err.Error())
		return
	}

	st, store := s.evaluate(c, req.identity())
	resp := NewEvaluateResponse(st, store)
	if len(req.Features) > 0 {
		resp.Features = make(map[string]bool, len(req.Features))
		for _, f := range req.Features {
			resp.Features[f] = st.FilterFeature(f, true)
		}
	}
	if req.CallChain != nil {
		resp.Attestation = Attest(st, req.CallChain)
	}
	apiresponses.RespondOK(c, resp)
}

func (s *Server) postFeature(c *gin.Context) {
	var req FeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid feature request", err.Error())
		return
	}
	def := true
	if req.Default != nil {
		def = *req.Default
	}

	st, _ := s.evaluate(c, policy.Identity{Package: req.Package, Process: req.Process})
	apiresponses.RespondOK(c, FeatureResponse{
		Feature: req.Feature,
		Default: def,
		Result:  st.FilterFeature(req.Feature, def),
	})
}

func (s *Server) postAttestation(c *gin.Context) {
	var req AttestationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid attestation request", err.Error())
		return
	}

	st, _ := s.evaluate(c, policy.Identity{Package: req.Package, Process: req.Process})
	if err := st.GuardAttestation(policy.CallChain(req.CallChain)); err != nil {
		if errors.Is(err, policy.ErrAttestationBlocked) {
			apiresponses.RespondAttestationBlocked(c, err)
			return
		}
		apiresponses.RespondInternalError(c, "check attestation", err, system.GetReqLogger(c, s.log.Sugar()))
		return
	}
	apiresponses.RespondOK(c, AttestationResult{Allowed: true})
}

func (s *Server) getProfiles(c *gin.Context) {
	profiles := s.registry.Profiles()
	out := make([]ProfileView, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, NewProfileView(p))
	}
	apiresponses.RespondOK(c, out)
}

func (s *Server) getProfile(c *gin.Context) {
	name := c.Param("name")
	p, ok := s.registry.Profile(name)
	if !ok {
		apiresponses.RespondNotFound(c, "profile", name)
		return
	}
	apiresponses.RespondOK(c, NewProfileView(p))
}

func (s *Server) getMatchSets(c *gin.Context) {
	apiresponses.RespondOK(c, NewMatchSetsView(s.registry.Sets()))
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: version.Get()})
}
