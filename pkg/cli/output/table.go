package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/telekom/props-override/pkg/api"
	"github.com/telekom/props-override/pkg/props"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// WriteDecision prints a decision as a key/value block followed by the
// field writes.
func WriteDecision(w io.Writer, d api.EvaluateResponse) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintf(tw, "PACKAGE:\t%s\n", orDash(d.Identity.Package))
	_, _ = fmt.Fprintf(tw, "PROCESS:\t%s\n", orDash(d.Identity.Process))
	_, _ = fmt.Fprintf(tw, "RULE:\t%s\n", d.Rule)
	_, _ = fmt.Fprintf(tw, "PROFILE:\t%s\n", orDash(d.Profile))
	_, _ = fmt.Fprintf(tw, "PRIVILEGED_ATTESTATION_CALLER:\t%t\n", d.Flags.PrivilegedAttestationCaller)
	_, _ = fmt.Fprintf(tw, "PACKAGE_INSTALLER:\t%t\n", d.Flags.PackageInstaller)
	_, _ = fmt.Fprintf(tw, "PHOTOS_APP:\t%t\n", d.Flags.PhotosApp)
	if d.Attestation != nil {
		att := "allowed"
		if !d.Attestation.Allowed {
			att = "blocked: " + d.Attestation.Reason
		}
		_, _ = fmt.Fprintf(tw, "ATTESTATION:\t%s\n", att)
	}
	_ = tw.Flush()

	if len(d.Writes) > 0 || len(d.Failed) > 0 {
		_, _ = fmt.Fprintln(w)
		WriteEntries(w, d.Writes, d.Failed)
	}

	if len(d.Features) > 0 {
		_, _ = fmt.Fprintln(w)
		names := make([]string, 0, len(d.Features))
		for name := range d.Features {
			names = append(names, name)
		}
		sort.Strings(names)
		tw = newTabWriter(w)
		_, _ = fmt.Fprintln(tw, "FEATURE\tRESULT")
		for _, name := range names {
			_, _ = fmt.Fprintf(tw, "%s\t%t\n", name, d.Features[name])
		}
		_ = tw.Flush()
	}
}

// WriteEntries prints field writes; failed fields are listed with an
// UNAVAILABLE status.
func WriteEntries(w io.Writer, entries []props.Entry, failed []props.Field) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintln(tw, "FIELD\tVALUE\tSTATUS")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Field, e.Value, "WRITTEN")
	}
	for _, f := range failed {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", f, "-", "UNAVAILABLE")
	}
	_ = tw.Flush()
}

func WriteProfilesTable(w io.Writer, profiles []api.ProfileView) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintln(tw, "NAME\tFIELDS")
	for _, p := range profiles {
		fields := make([]string, 0, len(p.Entries))
		for _, e := range p.Entries {
			fields = append(fields, e.Field.String())
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", p.Name, strings.Join(fields, ","))
	}
	_ = tw.Flush()
}

func WriteProfileTable(w io.Writer, p api.ProfileView) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintln(tw, "FIELD\tVALUE")
	for _, e := range p.Entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", e.Field, e.Value)
	}
	_ = tw.Flush()
}

func WriteMatchSetsTable(w io.Writer, m api.MatchSetsView) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintln(tw, "SET\tENTRY")
	rows := []struct {
		name    string
		entries []string
	}{
		{"exempt", m.ExemptPackages},
		{"extra", m.ExtraPackages},
		{"feature-blacklist", m.FeatureBlacklist},
		{"attestation-marker", m.AttestationMarkers},
	}
	for _, r := range rows {
		for _, e := range r.entries {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.name, e)
		}
	}
	_ = tw.Flush()
}
