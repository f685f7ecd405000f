package policy

import (
	"github.com/telekom/props-override/pkg/config"
	"github.com/telekom/props-override/pkg/props"
)

// Registry holds the override profiles and match sets for the process
// lifetime. Profiles built from configuration exist only when the value
// they depend on is set.
type Registry struct {
	overrides  config.Overrides
	sets       MatchSets
	referenceA props.Profile
	referenceB props.Profile
	certified  props.Profile
	stock      props.Profile
	model      props.Profile
}

func NewRegistry(cfg config.Overrides, sets MatchSets) *Registry {
	r := &Registry{
		overrides:  cfg,
		sets:       sets,
		referenceA: props.ReferenceDeviceA(),
		referenceB: props.ReferenceDeviceB(),
	}
	if cfg.CertifiedFingerprint != "" {
		r.certified = props.Certified(cfg.CertifiedFingerprint, cfg.CertifiedDevice, cfg.CertifiedModel)
	}
	if cfg.StockFingerprint != "" {
		r.stock = props.StockFingerprint(cfg.StockFingerprint)
	}
	if cfg.NetflixSpoofModel != "" {
		r.model = props.ModelOnly(cfg.NetflixSpoofModel)
	}
	return r
}

func (r *Registry) Sets() MatchSets {
	return r.sets
}

func (r *Registry) Overrides() config.Overrides {
	return r.overrides
}

// Profiles lists the available profiles in priority order.
func (r *Registry) Profiles() []props.Profile {
	out := make([]props.Profile, 0, 5)
	for _, p := range []props.Profile{r.certified, r.referenceB, r.stock, r.model, r.referenceA} {
		if !p.IsEmpty() {
			out = append(out, p)
		}
	}
	return out
}

// Profile looks a profile up by name.
func (r *Registry) Profile(name string) (props.Profile, bool) {
	for _, p := range r.Profiles() {
		if p.Name() == name {
			return p, true
		}
	}
	return props.Profile{}, false
}

// Select runs the priority chain for id without touching any sink.
func (r *Registry) Select(id Identity) (Rule, props.Profile) {
	if id.Package == "" || id.Process == "" || r.sets.IsExempt(id.Package) {
		return RuleExempt, props.Profile{}
	}
	switch {
	case id.privileged() && !r.certified.IsEmpty():
		return RuleCertified, r.certified
	case id.Package == PackagePhotos:
		return RulePhotos, r.referenceB
	case !r.stock.IsEmpty() && id.Package == PackageARServices:
		return RuleStockFingerprint, r.stock
	case !r.model.IsEmpty() && id.Package == PackageStreaming:
		return RuleModel, r.model
	case r.sets.isVendorDefault(id.Package):
		return RuleDefault, r.referenceA
	}
	return RuleNone, props.Profile{}
}
