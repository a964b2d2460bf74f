// Package profile holds the static visual profile catalog, the selection
// state machine and the cross-fade interpolation between profiles.
package profile

import (
	_ "embed"
	"math"
	"strings"

	"github.com/crazy3lf/colorconv"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Palette is a profile's color scheme. Colors are hex strings in the catalog
// and parsed to RGB once at load time.
type Palette struct {
	Primary    string   `yaml:"primary"`
	Secondary  string   `yaml:"secondary"`
	Tertiary   string   `yaml:"tertiary"`
	Accent     string   `yaml:"accent"`
	Highlights []string `yaml:"highlights"`
	// GradientStops are positions in [0,1] used by renderers for background
	// gradients.
	GradientStops []float64 `yaml:"gradientStops"`
}

// Complexity describes how busy a profile renders.
type Complexity struct {
	ParticleCount   int     `yaml:"particleCount"`
	GeometryDetail  int     `yaml:"geometryDetail"`
	LayerCount      int     `yaml:"layerCount"`
	EffectIntensity float64 `yaml:"effectIntensity"`
	MovementSpeed   float64 `yaml:"movementSpeed"`
	Turbulence      float64 `yaml:"turbulence"`
}

// Reactivity weights how strongly each frequency band drives the visuals.
type Reactivity struct {
	Low  float64 `yaml:"low"`
	Mid  float64 `yaml:"mid"`
	High float64 `yaml:"high"`
}

// Profile is one static visual DNA entry. Loaded once at startup, never
// mutated.
type Profile struct {
	ID              string     `yaml:"id"`
	Name            string     `yaml:"name"`
	Palette         Palette    `yaml:"palette"`
	Complexity      Complexity `yaml:"complexity"`
	TransitionStyle string     `yaml:"transitionStyle"`
	GenreAffinities []string   `yaml:"genreAffinities"`
	MoodTags        []string   `yaml:"moodTags"`
	PeakIntensity   float64    `yaml:"peakIntensity"`
	Reactivity      Reactivity `yaml:"reactivity"`
}

// Summary is the renderer-facing listing of a profile.
type Summary struct {
	ID            string
	Name          string
	MoodTags      []string
	PeakIntensity float64
}

// RGB is an 8-bit color triple used for interpolation.
type RGB struct {
	R, G, B uint8
}

// Hex renders the color back as a #rrggbb string.
func (c RGB) Hex() string {
	return colorconv.RGBToHex(c.R, c.G, c.B)
}

// ParseColor converts a hex string to RGB. Invalid colors come back as an
// error so catalog mistakes surface at startup, not mid-show.
func ParseColor(hex string) (RGB, error) {
	r, g, b, err := colorconv.HexToRGB(hex)
	if err != nil {
		return RGB{}, eris.Wrapf(err, "parse color %q", hex)
	}
	return RGB{R: r, G: g, B: b}, nil
}

// Catalog is the loaded, validated profile set.
type Catalog struct {
	profiles []Profile
	byID     map[string]*Profile
}

type catalogFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadCatalog parses and validates the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return loadCatalog(catalogYAML)
}

func loadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "decode profile catalog")
	}
	if len(file.Profiles) == 0 {
		return nil, eris.New("profile catalog is empty")
	}

	c := &Catalog{
		profiles: file.Profiles,
		byID:     make(map[string]*Profile, len(file.Profiles)),
	}
	for i := range c.profiles {
		p := &c.profiles[i]
		if p.ID == "" {
			return nil, eris.Errorf("profile %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, eris.Errorf("duplicate profile id %q", p.ID)
		}
		for _, hex := range []string{p.Palette.Primary, p.Palette.Secondary, p.Palette.Tertiary, p.Palette.Accent} {
			if _, err := ParseColor(hex); err != nil {
				return nil, eris.Wrapf(err, "profile %q", p.ID)
			}
		}
		c.byID[p.ID] = p
	}
	return c, nil
}

// ByID returns the profile with the given id, nil if absent.
func (c *Catalog) ByID(id string) *Profile {
	return c.byID[id]
}

// Profiles returns the catalog in declaration order.
func (c *Catalog) Profiles() []Profile {
	return c.profiles
}

// Summaries lists the catalog for external consumers.
func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, len(c.profiles))
	for i, p := range c.profiles {
		out[i] = Summary{ID: p.ID, Name: p.Name, MoodTags: p.MoodTags, PeakIntensity: p.PeakIntensity}
	}
	return out
}

// Match picks the best profile for a genre/energy pair: genre-affinity
// matches (substring either direction) ranked by peak-intensity proximity,
// falling back to energy-banded selection when no affinity matches.
func (c *Catalog) Match(genre string, energy float64) *Profile {
	genre = strings.ToLower(strings.TrimSpace(genre))

	var best *Profile
	bestDist := math.MaxFloat64
	if genre != "" && genre != "unknown" {
		for i := range c.profiles {
			p := &c.profiles[i]
			if !matchesGenre(p, genre) {
				continue
			}
			if dist := math.Abs(p.PeakIntensity - energy); dist < bestDist {
				best, bestDist = p, dist
			}
		}
	}
	if best != nil {
		return best
	}
	return c.ByEnergy(energy)
}

// ByEnergy is the banded fallback over fixed thresholds.
func (c *Catalog) ByEnergy(energy float64) *Profile {
	var target float64
	switch {
	case energy > 0.8:
		target = 0.9
	case energy > 0.6:
		target = 0.7
	case energy > 0.4:
		target = 0.5
	default:
		return c.lowEnergyDefault()
	}
	return c.closestPeak(target)
}

func (c *Catalog) lowEnergyDefault() *Profile {
	best := &c.profiles[0]
	for i := range c.profiles {
		if c.profiles[i].PeakIntensity < best.PeakIntensity {
			best = &c.profiles[i]
		}
	}
	return best
}

func (c *Catalog) closestPeak(target float64) *Profile {
	best := &c.profiles[0]
	bestDist := math.Abs(best.PeakIntensity - target)
	for i := range c.profiles {
		if dist := math.Abs(c.profiles[i].PeakIntensity - target); dist < bestDist {
			best, bestDist = &c.profiles[i], dist
		}
	}
	return best
}

func matchesGenre(p *Profile, genre string) bool {
	for _, affinity := range p.GenreAffinities {
		affinity = strings.ToLower(affinity)
		if strings.Contains(affinity, genre) || strings.Contains(genre, affinity) {
			return true
		}
	}
	return false
}
