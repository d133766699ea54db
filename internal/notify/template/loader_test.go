package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewSetLoadsEmbedded(t *testing.T) {
	s, err := NewSet(zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, s.Has(Address))
	assert.False(t, s.Has("missing"))

	_, err = s.Render("missing", nil)
	assert.Error(t, err)
}

func TestSetFuncs(t *testing.T) {
	s, err := NewSet(zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Set("x", `{{ upper .A }} {{ title .B }}`))

	out, err := s.Render("x", map[string]string{"A": "ipv6", "B": "address changed"})
	require.NoError(t, err)
	assert.Equal(t, "IPV6 Address Changed", out)
}

func TestOverride(t *testing.T) {
	s, err := NewSet(zaptest.NewLogger(t))
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "custom.html")
	require.NoError(t, os.WriteFile(file, []byte(`<b>{{ . }}</b>`), 0o600))
	require.NoError(t, s.Override(map[string]string{Address: file}))

	out, err := s.Render(Address, "<x>")
	require.NoError(t, err)
	assert.Equal(t, "<b>&lt;x&gt;</b>", out)

	assert.Error(t, s.Override(map[string]string{Address: filepath.Join(t.TempDir(), "nope.html")}))
	assert.Error(t, s.Set("broken", "{{ .Unclosed "))
}
