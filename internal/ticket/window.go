package ticket

import (
	"fmt"
	"time"
)

// Window decides whether a redemption time is acceptable for a match.
type Window interface {
	Admits(now, start, end time.Time) bool
	String() string
}

// Symmetric admits |now - start| <= Tolerance.
type Symmetric struct {
	Tolerance time.Duration
}

func (w Symmetric) Admits(now, start, _ time.Time) bool {
	d := now.Sub(start)
	if d < 0 {
		d = -d
	}
	return d <= w.Tolerance
}

func (w Symmetric) String() string {
	return fmt.Sprintf("symmetric(±%s)", w.Tolerance)
}

// Asymmetric admits start-Before <= now <= max(start+After, end). A zero
// end means the match end is unknown.
type Asymmetric struct {
	Before time.Duration
	After  time.Duration
}

func (w Asymmetric) Admits(now, start, end time.Time) bool {
	opens := start.Add(-w.Before)
	closes := start.Add(w.After)
	if end.After(closes) {
		closes = end
	}
	return !now.Before(opens) && !now.After(closes)
}

func (w Asymmetric) String() string {
	return fmt.Sprintf("asymmetric(-%s/+%s)", w.Before, w.After)
}

// Window policy names.
const (
	WindowSymmetric  = "symmetric"
	WindowAsymmetric = "asymmetric"
)

// WindowConfig selects and parameterises the admission window.
type WindowConfig struct {
	Policy    string        `yaml:"policy"`
	Tolerance time.Duration `yaml:"tolerance"`
	Before    time.Duration `yaml:"before"`
	After     time.Duration `yaml:"after"`
}

// DefaultWindowConfig returns the symmetric fifteen minute window.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Policy:    WindowSymmetric,
		Tolerance: 15 * time.Minute,
		Before:    30 * time.Minute,
		After:     15 * time.Minute,
	}
}

// NewWindow builds the configured policy.
func NewWindow(cfg WindowConfig) (Window, error) {
	switch cfg.Policy {
	case WindowSymmetric, "":
		if cfg.Tolerance < 0 {
			return nil, fmt.Errorf("window tolerance must not be negative")
		}
		return Symmetric{Tolerance: cfg.Tolerance}, nil
	case WindowAsymmetric:
		if cfg.Before < 0 || cfg.After < 0 {
			return nil, fmt.Errorf("window bounds must not be negative")
		}
		return Asymmetric{Before: cfg.Before, After: cfg.After}, nil
	default:
		return nil, fmt.Errorf("unknown window policy %q", cfg.Policy)
	}
}
