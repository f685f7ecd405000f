package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/props-override/pkg/api"
	"github.com/telekom/props-override/pkg/policy"
	"github.com/telekom/props-override/pkg/props"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = ParseFormat("yaml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestWriteObject(t *testing.T) {
	obj := map[string]any{"rule": "photos", "sdk": 25}

	var buf bytes.Buffer
	require.NoError(t, WriteObject(&buf, FormatJSON, obj))
	assert.JSONEq(t, `{"rule":"photos","sdk":25}`, buf.String())

	buf.Reset()
	require.NoError(t, WriteObject(&buf, FormatYAML, obj))
	assert.Contains(t, buf.String(), "rule: photos")

	require.Error(t, WriteObject(&buf, FormatTable, obj))
	require.Error(t, WriteObject(&buf, Format("xml"), obj))
}

func TestWriteDecision(t *testing.T) {
	var buf bytes.Buffer
	WriteDecision(&buf, api.EvaluateResponse{
		Identity: policy.Identity{Package: policy.PackageServices, Process: policy.ProcessUnstable},
		Rule:     policy.RuleCertified,
		Profile:  props.ProfileCertified,
		Writes: []props.Entry{
			{Field: props.FieldFingerprint, Value: props.String("google/walleye")},
		},
		Failed:      []props.Field{props.FieldInitialSDK},
		Flags:       policy.Flags{PrivilegedAttestationCaller: true},
		Features:    map[string]bool{"B_FEATURE": true, "A_FEATURE": false},
		Attestation: &api.AttestationResult{Allowed: false, Reason: "privileged"},
	})

	out := buf.String()
	assert.Contains(t, out, "RULE:")
	assert.Contains(t, out, "certified")
	assert.Contains(t, out, "blocked: privileged")
	assert.Regexp(t, `FINGERPRINT\s+google/walleye\s+WRITTEN`, out)
	assert.Regexp(t, `DEVICE_INITIAL_SDK_INT\s+-\s+UNAVAILABLE`, out)
	assert.Less(t, strings.Index(out, "A_FEATURE"), strings.Index(out, "B_FEATURE"))
}

func TestWriteDecisionNoOverride(t *testing.T) {
	var buf bytes.Buffer
	WriteDecision(&buf, api.EvaluateResponse{Rule: policy.RuleExempt})
	out := buf.String()
	assert.Contains(t, out, "exempt")
	assert.NotContains(t, out, "FIELD")
	assert.Regexp(t, `PACKAGE:\s+-`, out)
}

func TestWriteProfiles(t *testing.T) {
	views := []api.ProfileView{api.NewProfileView(props.ReferenceDeviceA())}

	var buf bytes.Buffer
	WriteProfilesTable(&buf, views)
	assert.Contains(t, buf.String(), "pixel5")
	assert.Contains(t, buf.String(), "BRAND,MANUFACTURER,DEVICE,PRODUCT,MODEL,FINGERPRINT")

	buf.Reset()
	WriteProfileTable(&buf, views[0])
	assert.Regexp(t, `MODEL\s+Pixel 5`, buf.String())
}

func TestWriteMatchSetsTable(t *testing.T) {
	var buf bytes.Buffer
	WriteMatchSetsTable(&buf, api.NewMatchSetsView(policy.DefaultMatchSets()))
	assert.Regexp(t, `extra\s+com.android.chrome`, buf.String())
	assert.Regexp(t, `attestation-marker\s+DroidGuard`, buf.String())
}
