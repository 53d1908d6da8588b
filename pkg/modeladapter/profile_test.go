package modeladapter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/relnotes/pkg/modeladapter"
)

func TestCatalog_LookupExact(t *testing.T) {
	c, err := modeladapter.NewCatalog()
	require.NoError(t, err)

	p, ok := c.Lookup("o4-mini")
	require.True(t, ok)
	assert.Equal(t, modeladapter.ParamMaxCompletionTokens, p.TokenParam)
	require.NotNil(t, p.FixedTemperature)
	assert.InDelta(t, 1.0, *p.FixedTemperature, 0)
	assert.True(t, p.IsUnsupported("top_p"))
}

func TestCatalog_LookupDatedDeployment(t *testing.T) {
	c, err := modeladapter.NewCatalog()
	require.NoError(t, err)

	p, ok := c.Lookup("O4-Mini-2025-04-16")
	require.True(t, ok)
	assert.Equal(t, "O4-Mini-2025-04-16", p.ModelID)
	assert.Equal(t, "2024-12-01-preview", p.MinAPIVersion)

	p, ok = c.Lookup("gpt-4o-mini-2024-07-18")
	require.True(t, ok)
	assert.Equal(t, "2024-06-01", p.MinAPIVersion)
	assert.Nil(t, p.FixedTemperature)
}

func TestCatalog_LookupRequiresBoundary(t *testing.T) {
	c, err := modeladapter.NewCatalog()
	require.NoError(t, err)

	p, ok := c.Lookup("o3x")
	assert.False(t, ok)
	assert.Equal(t, modeladapter.ParamMaxTokens, p.TokenParam)
	assert.Empty(t, p.MinAPIVersion)
}

func TestCatalog_LookupReturnsCopy(t *testing.T) {
	c, err := modeladapter.NewCatalog()
	require.NoError(t, err)

	p, _ := c.Lookup("o3")
	p.Unsupported[0] = "mutated"
	*p.FixedTemperature = 0.5

	again, _ := c.Lookup("o3")
	assert.NotContains(t, again.Unsupported, "mutated")
	assert.InDelta(t, 1.0, *again.FixedTemperature, 0)
}

func TestLoadCatalog_OverridesAndAdds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	data := `profiles:
  - model_id: gpt-4o
    min_api_version: "2024-10-21"
    token_param: max_tokens
    unsupported: [logprobs]
  - model_id: acme-llm
    token_param: max_completion_tokens
    fixed_temperature: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := modeladapter.LoadCatalog(path)
	require.NoError(t, err)

	p, ok := c.Lookup("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "2024-10-21", p.MinAPIVersion)
	assert.Equal(t, []string{"logprobs"}, p.Unsupported)

	p, ok = c.Lookup("acme-llm")
	require.True(t, ok)
	assert.InDelta(t, 0.5, *p.FixedTemperature, 0)

	_, ok = c.Lookup("o1")
	assert.True(t, ok, "built-ins remain")
}

func TestLoadCatalog_InvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  - model_id: x\n    token_param: tokens\n"), 0o600))

	_, err := modeladapter.LoadCatalog(path)
	require.Error(t, err)
}

func TestLoadCatalog_EmptyPath(t *testing.T) {
	c, err := modeladapter.LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Profiles())
}

func TestProfile_WithUnsupportedSortedCopy(t *testing.T) {
	p := modeladapter.Profile{ModelID: "m", Unsupported: []string{"top_p"}}
	d := p.WithUnsupported("logprobs", "top_p")

	assert.Equal(t, []string{"logprobs", "top_p"}, d.Unsupported)
	assert.Equal(t, []string{"top_p"}, p.Unsupported)
}
