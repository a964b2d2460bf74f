package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCatalog()
	require.NoError(t, err)
	return c
}

func TestLoadCatalog(t *testing.T) {
	c := mustCatalog(t)

	assert.Len(t, c.Profiles(), 10)
	assert.NotNil(t, c.ByID("neon-surge"))
	assert.Nil(t, c.ByID("does-not-exist"))

	seen := map[string]bool{}
	for _, s := range c.Summaries() {
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
		assert.NotEmpty(t, s.Name)
	}
}

func TestLoadCatalogRejectsBadColor(t *testing.T) {
	_, err := loadCatalog([]byte(`
profiles:
  - id: broken
    palette:
      primary: "not-a-color"
      secondary: "#000000"
      tertiary: "#000000"
      accent: "#000000"
`))
	assert.Error(t, err)
}

func TestLoadCatalogRejectsDuplicateID(t *testing.T) {
	_, err := loadCatalog([]byte(`
profiles:
  - id: twin
    palette: {primary: "#000000", secondary: "#000000", tertiary: "#000000", accent: "#000000"}
  - id: twin
    palette: {primary: "#000000", secondary: "#000000", tertiary: "#000000", accent: "#000000"}
`))
	assert.Error(t, err)
}

func TestMatchPrefersGenreAffinity(t *testing.T) {
	c := mustCatalog(t)

	assert.Equal(t, "strobe-circuit", c.Match("electronic", 0.95).ID)
	assert.Equal(t, "neon-surge", c.Match("electronic", 0.7).ID)
	assert.Equal(t, "velvet-groove", c.Match("house", 0.5).ID)
	assert.Equal(t, "low-end-theory", c.Match("hip-hop", 0.7).ID)
}

func TestMatchSubstringBothDirections(t *testing.T) {
	c := mustCatalog(t)

	// Affinity "deep house" contains the genre "house"; the genre
	// "progressive house music" contains the affinity "house".
	assert.Equal(t, "deep-house-haze", c.Match("house", 0.72).ID)
	got := c.Match("progressive house music", 0.72)
	assert.Equal(t, "deep-house-haze", got.ID)
}

func TestMatchUnknownGenreFallsBackToEnergy(t *testing.T) {
	c := mustCatalog(t)

	assert.Equal(t, "neon-surge", c.Match("unknown", 0.9).ID)
	assert.Equal(t, "void-walker", c.Match("", 0.1).ID)
	assert.Equal(t, "void-walker", c.Match("polka", 0.1).ID)
}

func TestByEnergyBands(t *testing.T) {
	c := mustCatalog(t)

	assert.Equal(t, "neon-surge", c.ByEnergy(0.9).ID)
	assert.Equal(t, "deep-house-haze", c.ByEnergy(0.65).ID)
	assert.Equal(t, "velvet-groove", c.ByEnergy(0.5).ID)
	// At or below the lowest band the quietest profile wins.
	assert.Equal(t, "void-walker", c.ByEnergy(0.2).ID)
	assert.Equal(t, "void-walker", c.ByEnergy(0.0).ID)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff2975")
	require.NoError(t, err)
	assert.Equal(t, RGB{R: 0xff, G: 0x29, B: 0x75}, c)
	assert.Equal(t, "#ff2975", strings.ToLower(c.Hex()))

	_, err = ParseColor("#zzz")
	assert.Error(t, err)
}
