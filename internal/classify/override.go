package classify

import (
	"time"

	"github.com/auraviz/auraviz/internal/utils"
)

// Section is a coarse position within an identified track.
type Section int

const (
	SectionVerse Section = iota
	SectionIntro
	SectionChorus
	SectionOutro
)

// String returns the lowercase section name.
func (s Section) String() string {
	switch s {
	case SectionIntro:
		return "intro"
	case SectionChorus:
		return "chorus"
	case SectionOutro:
		return "outro"
	default:
		return "verse"
	}
}

// Track holds the known attributes of an identified track, supplied by an
// external identification collaborator.
type Track struct {
	Title  string
	Artist string
	Genre  string
	Energy float64
}

// Match is a confident track identification with playback position.
type Match struct {
	Track         Track
	Confidence    float64
	Section       Section
	TimeInTrack   time.Duration
	TimeRemaining time.Duration
}

// TransitionDetection flags that the identified track is entering or leaving.
type TransitionDetection struct {
	IsTransitioning bool
	Type            string
}

// Matches below this confidence do not override the heuristic.
const minOverrideConfidence = 0.8

// Near the edges of a track the song structure is treated as a transition.
const (
	introTransitionWindow = 15 * time.Second
	outroTransitionWindow = 20 * time.Second
)

// Override wraps a Classifier and replaces its output with ground truth while
// a confident track match is active. Withdrawing the match restores the
// wrapped classifier.
type Override struct {
	inner Classifier
	match *Match
}

// NewOverride wraps inner.
func NewOverride(inner Classifier) *Override {
	return &Override{inner: inner}
}

// SetMatch installs or withdraws (nil) the current identification.
func (o *Override) SetMatch(m *Match) {
	o.match = m
}

// Active reports whether a confident match currently overrides the heuristic.
func (o *Override) Active() bool {
	return o.match != nil && o.match.Confidence >= minOverrideConfidence
}

// Classify implements Classifier. Ground truth wins whenever active.
func (o *Override) Classify(in Input) Result {
	if !o.Active() {
		return o.inner.Classify(in)
	}

	m := o.match
	res := Result{
		Genre:           m.Track.Genre,
		GenreConfidence: utils.Clamp(m.Confidence, 0.0, maxConfidence),
		Energy:          utils.Clamp(m.Track.Energy*sectionEnergyMultiplier(m.Section), 0.0, 1.0),
		Trend:           sectionTrend(m.Section),
	}
	if res.Genre == "" {
		res.Genre = GenreUnknown
	}
	return res
}

// Transition reports whether the active match sits in a song transition
// (intro ramp-in or outro ramp-out).
func (o *Override) Transition() TransitionDetection {
	if !o.Active() {
		return TransitionDetection{}
	}
	m := o.match
	switch {
	case m.Section == SectionOutro && m.TimeRemaining <= outroTransitionWindow:
		return TransitionDetection{IsTransitioning: true, Type: "outro"}
	case m.Section == SectionIntro && m.TimeInTrack <= introTransitionWindow:
		return TransitionDetection{IsTransitioning: true, Type: "intro"}
	default:
		return TransitionDetection{}
	}
}

func sectionEnergyMultiplier(s Section) float64 {
	switch s {
	case SectionIntro:
		return 0.7
	case SectionChorus:
		return 1.15
	case SectionOutro:
		return 0.6
	default:
		return 0.9
	}
}

func sectionTrend(s Section) Trend {
	switch s {
	case SectionIntro:
		return TrendRising
	case SectionOutro:
		return TrendFalling
	default:
		return TrendStable
	}
}
