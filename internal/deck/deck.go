// Package deck holds the Mission Genesis slides and the navigation state
// over them.
package deck

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

var (
	// ErrOutOfRange is returned by [Navigator.GoTo] for an index outside the
	// deck and by [Navigator.SelectScreen] for one outside the slide's screens.
	ErrOutOfRange = errors.New("deck: index out of range")

	// ErrNoScreens is returned by [Navigator.SelectScreen] on a slide without
	// interface screens.
	ErrNoScreens = errors.New("deck: slide has no screens")
)

// Slide is one page of the deck.
type Slide struct {
	// Name is the phase label shown in the HUD and the slide menu.
	Name string
	// Title is the headline.
	Title string
	// Body is plain text; blank lines separate blocks.
	Body string
	// Screens, when set, turns the slide into an explorer: one screen is
	// selected at a time and shown in detail.
	Screens []Screen
	// Simulation marks the slide that hosts the video simulation.
	Simulation bool
}

// Screen is one product screen shown on an explorer slide.
type Screen struct {
	Title    string
	Subtitle string
	Desc     string
}

// Tag is the upper-case, underscore-joined title ("HOME_SECTOR").
func (s Screen) Tag() string {
	return strings.Join(strings.Fields(strings.ToUpper(s.Title)), "_")
}

// Key is a navigation key, independent of any terminal library.
type Key int

const (
	KeyNone Key = iota
	KeyArrowRight
	KeyArrowLeft
	KeySpace
	KeyArrowUp
	KeyArrowDown
	// KeyDigit1 selects the first screen; KeyDigit1+n selects screen n+1.
	KeyDigit1
	KeyDigit9 = KeyDigit1 + 8
)

// DigitKey returns the Key for the digit rune r ('1' to '9'), or KeyNone.
func DigitKey(r rune) Key {
	if r < '1' || r > '9' {
		return KeyNone
	}
	return KeyDigit1 + Key(r-'1')
}

// Navigator tracks the current slide. The index always stays within
// [0, Count()-1]. It is safe for concurrent use.
type Navigator struct {
	slides []Slide

	mu       sync.Mutex
	current  int
	screen   int
	onChange []func(index int)
}

// NewNavigator creates a Navigator positioned on the first slide. slides must
// not be empty.
func NewNavigator(slides []Slide) (*Navigator, error) {
	if len(slides) == 0 {
		return nil, errors.New("deck: no slides")
	}
	s := make([]Slide, len(slides))
	copy(s, slides)
	return &Navigator{slides: s}, nil
}

// OnChange registers fn to run after every move with the new index. fn runs
// without the navigator's lock held.
func (n *Navigator) OnChange(fn func(index int)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = append(n.onChange, fn)
}

// Next advances one slide. It reports whether the index moved; on the last
// slide it is a no-op.
func (n *Navigator) Next() bool {
	return n.move(func(i int) int { return min(i+1, len(n.slides)-1) })
}

// Prev goes back one slide. On the first slide it is a no-op.
func (n *Navigator) Prev() bool {
	return n.move(func(i int) int { return max(i-1, 0) })
}

// GoTo jumps to slide i. An index outside the deck returns [ErrOutOfRange]
// and leaves the position unchanged.
func (n *Navigator) GoTo(i int) error {
	if i < 0 || i >= len(n.slides) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, i, len(n.slides)-1)
	}
	n.move(func(int) int { return i })
	return nil
}

func (n *Navigator) move(to func(int) int) bool {
	n.mu.Lock()
	prev := n.current
	n.current = to(prev)
	cur := n.current
	if cur != prev {
		n.screen = 0
	}
	obs := append(([]func(int))(nil), n.onChange...)
	n.mu.Unlock()

	if cur == prev {
		return false
	}
	for _, fn := range obs {
		fn(cur)
	}
	return true
}

// HandleKey applies a navigation key and reports whether it was used. Slide
// moves are always used; screen keys only on a slide with screens.
func (n *Navigator) HandleKey(k Key) bool {
	switch {
	case k == KeyArrowRight, k == KeySpace:
		n.Next()
	case k == KeyArrowLeft:
		n.Prev()
	case k == KeyArrowUp:
		return n.stepScreen(-1)
	case k == KeyArrowDown:
		return n.stepScreen(1)
	case k >= KeyDigit1 && k <= KeyDigit9:
		return n.SelectScreen(int(k-KeyDigit1)) == nil
	default:
		return false
	}
	return true
}

// SelectScreen selects screen i of the current slide.
func (n *Navigator) SelectScreen(i int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	screens := n.slides[n.current].Screens
	if len(screens) == 0 {
		return ErrNoScreens
	}
	if i < 0 || i >= len(screens) {
		return fmt.Errorf("%w: screen %d not in [0, %d]", ErrOutOfRange, i, len(screens)-1)
	}
	n.screen = i
	return nil
}

// stepScreen moves the screen selection by delta, clamped to the list.
func (n *Navigator) stepScreen(delta int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := len(n.slides[n.current].Screens)
	if count == 0 {
		return false
	}
	n.screen = min(max(n.screen+delta, 0), count-1)
	return true
}

// Screen returns the selected screen of the current slide and its index.
// ok is false on a slide without screens.
func (n *Navigator) Screen() (s Screen, index int, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	screens := n.slides[n.current].Screens
	if len(screens) == 0 {
		return Screen{}, 0, false
	}
	return screens[n.screen], n.screen, true
}

// Index returns the current position.
func (n *Navigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Count returns the number of slides.
func (n *Navigator) Count() int { return len(n.slides) }

// Current returns the slide at the current position.
func (n *Navigator) Current() Slide {
	return n.slides[n.Index()]
}

// Slides returns a copy of every slide in order.
func (n *Navigator) Slides() []Slide {
	out := make([]Slide, len(n.slides))
	copy(out, n.slides)
	return out
}

// AtStart reports whether the first slide is showing.
func (n *Navigator) AtStart() bool { return n.Index() == 0 }

// AtEnd reports whether the last slide is showing.
func (n *Navigator) AtEnd() bool { return n.Index() == len(n.slides)-1 }

// ProgressPercent is (index+1)/count*100; the last slide is exactly 100.
func (n *Navigator) ProgressPercent() float64 {
	return float64(n.Index()+1) / float64(len(n.slides)) * 100
}

// HUD renders the status line shown above every slide.
func (n *Navigator) HUD() string {
	return fmt.Sprintf("%s — SYNCHRONIZATION: %d%%",
		strings.ToUpper(n.Current().Name), int(math.Round(n.ProgressPercent())))
}

// findThreshold is the minimum Jaro-Winkler similarity for a fuzzy match.
const findThreshold = 0.8

// Find resolves a slide by phase number ("7") or by name, tolerating typos
// ("revnue"). It returns the index and whether anything matched.
func (n *Navigator) Find(query string) (int, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0, false
	}
	if num, err := strconv.Atoi(q); err == nil {
		if num >= 1 && num <= len(n.slides) {
			return num - 1, true
		}
		return 0, false
	}

	best, bestScore := -1, 0.0
	qTokens := strings.Fields(q)
	for i, s := range n.slides {
		name := strings.ToLower(s.Name)
		if name == q {
			return i, true
		}
		if score := similarity(qTokens, strings.Fields(name), q, name); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < findThreshold {
		return 0, false
	}
	return best, true
}

// similarity is the best Jaro-Winkler score over the full strings and every
// pair of words.
func similarity(qTokens, nameTokens []string, q, name string) float64 {
	score := matchr.JaroWinkler(q, name, false)
	for _, qt := range qTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(qt, nt, false); s > score {
				score = s
			}
		}
	}
	return score
}
