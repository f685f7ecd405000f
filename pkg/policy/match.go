package policy

import (
	"slices"
	"strings"

	"github.com/telekom/props-override/pkg/config"
)

// Well-known package and process names the priority chain matches on.
const (
	VendorPrefix        = "com.google.android."
	PackageServices     = "com.google.android.gms"
	ProcessUnstable     = PackageServices + ".unstable"
	PackagePhotos       = "com.google.android.apps.photos"
	PackageARServices   = "com.google.ar.core"
	PackageStreaming    = "com.netflix.mediaclient"
	PackageInstaller    = "com.android.vending"
	DefaultAttestMarker = "DroidGuard"
)

var defaultExempt = []string{
	"com.google.android.dialer",
	"com.google.android.euicc",
	"com.google.android.youtube",
	"com.google.android.apps.youtube.kids",
	"com.google.android.apps.youtube.music",
	"com.google.android.apps.recorder",
	"com.google.android.apps.wearables.maestro.companion",
	"com.google.android.settings.intelligence",
}

var defaultExtra = []string{
	"com.android.chrome",
	PackageInstaller,
}

var defaultFeatureBlacklist = []string{
	"PIXEL_2017_PRELOAD",
	"PIXEL_2018_PRELOAD",
	"PIXEL_2019_MIDYEAR_PRELOAD",
	"PIXEL_2019_PRELOAD",
	"PIXEL_2020_EXPERIENCE",
	"PIXEL_2020_MIDYEAR_EXPERIENCE",
	"PIXEL_2021_EXPERIENCE",
	"PIXEL_2021_MIDYEAR_EXPERIENCE",
}

// MatchSets holds the package and feature sets used as match predicates.
// A MatchSets value is never modified after construction; Extend returns a
// new value.
type MatchSets struct {
	exempt    map[string]struct{}
	extra     map[string]struct{}
	blacklist []string
	markers   []string
}

// DefaultMatchSets returns the built-in sets.
func DefaultMatchSets() MatchSets {
	return newMatchSets(defaultExempt, defaultExtra, defaultFeatureBlacklist, []string{DefaultAttestMarker})
}

func newMatchSets(exempt, extra, blacklist, markers []string) MatchSets {
	return MatchSets{
		exempt:    toSet(exempt),
		extra:     toSet(extra),
		blacklist: appendUnique(nil, blacklist...),
		markers:   appendUnique(nil, markers...),
	}
}

// Extend returns a copy of m with the configured entries added. Built-in
// entries are never removed.
func (m MatchSets) Extend(c config.Matching) MatchSets {
	return newMatchSets(
		append(m.ExemptPackages(), c.ExemptPackages...),
		append(m.ExtraPackages(), c.ExtraPackages...),
		append(slices.Clone(m.blacklist), c.FeatureBlacklist...),
		append(slices.Clone(m.markers), c.AttestationMarkers...),
	)
}

func (m MatchSets) IsExempt(pkg string) bool {
	_, ok := m.exempt[pkg]
	return ok
}

func (m MatchSets) IsExtra(pkg string) bool {
	_, ok := m.extra[pkg]
	return ok
}

// BlacklistMatch returns the first blacklist entry contained in feature.
func (m MatchSets) BlacklistMatch(feature string) (string, bool) {
	for _, entry := range m.blacklist {
		if strings.Contains(feature, entry) {
			return entry, true
		}
	}
	return "", false
}

// ExemptPackages returns the exemption whitelist, sorted.
func (m MatchSets) ExemptPackages() []string {
	return sortedKeys(m.exempt)
}

// ExtraPackages returns the packages spoofed like vendor packages, sorted.
func (m MatchSets) ExtraPackages() []string {
	return sortedKeys(m.extra)
}

func (m MatchSets) FeatureBlacklist() []string {
	return slices.Clone(m.blacklist)
}

func (m MatchSets) AttestationMarkers() []string {
	return slices.Clone(m.markers)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// isVendorDefault reports whether pkg gets the reference device A profile.
func (m MatchSets) isVendorDefault(pkg string) bool {
	if strings.HasPrefix(pkg, VendorPrefix) && !strings.Contains(strings.ToLower(pkg), "camera") {
		return true
	}
	return m.IsExtra(pkg)
}
