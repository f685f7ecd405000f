package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaults(t *testing.T) {
	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "unknown", info.GitCommit)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	assert.True(t, info.BuildTime.IsZero())
}

func TestGetParsesBuildDate(t *testing.T) {
	orig := BuildDate
	defer func() { BuildDate = orig }()

	BuildDate = "2026-01-13T20:00:00Z"
	info := Get()

	want, err := time.Parse(time.RFC3339, BuildDate)
	require.NoError(t, err)
	assert.True(t, info.BuildTime.Equal(want))
}

func TestBuildInfoString(t *testing.T) {
	s := BuildInfo{
		Version:   "v1.0.0",
		GitCommit: "0123456789abcdef0123",
		BuildDate: "2026-01-13T20:00:00Z",
		GoVersion: "go1.25.0",
		Platform:  "linux/amd64",
	}.String()
	assert.Equal(t, "v1.0.0 (commit 0123456789ab, built 2026-01-13T20:00:00Z, go1.25.0 linux/amd64)", s)
}
