package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2024-05-01T12:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	var i Info
	i.fromBuildSettings(settings)
	assert.Equal(t, "0123456789abcdef", i.GitCommit)
	assert.Equal(t, "2024-05-01T12:00:00Z", i.BuildDate)
	assert.True(t, i.Modified)

	// Link-time values win
	pinned := Info{GitCommit: "feedbee", BuildDate: "today"}
	pinned.fromBuildSettings(settings)
	assert.Equal(t, "feedbee", pinned.GitCommit)
	assert.Equal(t, "today", pinned.BuildDate)
}

func TestString(t *testing.T) {
	i := Info{
		Version:   "1.2.0",
		GitCommit: "0123456789abcdef",
		BuildDate: "2024-05-01",
		GoVersion: "go1.23.4",
		Platform:  "linux/amd64",
		Modified:  true,
	}
	assert.Equal(t, "ipwatch 1.2.0 (commit 0123456-dirty, built 2024-05-01, go1.23.4 linux/amd64)", i.String())
	assert.Equal(t, "ipwatch/1.2.0", i.UserAgent())
}

func TestGetInfo(t *testing.T) {
	i := GetInfo()
	assert.Equal(t, Version, i.Version)
	assert.NotEmpty(t, i.GitCommit)
	assert.NotEmpty(t, i.BuildDate)
	assert.True(t, strings.Contains(i.Platform, "/"))
}
