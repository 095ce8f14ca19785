// Package session holds the state a live quantization loop changes between frames:
// the palette size, the viewport and the combined output buffer.
package session

import (
	"fmt"

	"go.uber.org/zap"

	"palettecam/internal/imageproc"
)

const (
	// DefaultK is the palette size a session starts with.
	DefaultK = 2
	// ViewportStep is the pixel change of one resize command.
	ViewportStep = 20
	// MinViewport is the size below which shrink commands are ignored.
	MinViewport = 50
)

// Command is a runtime control.
type Command int

const (
	IncK Command = iota + 1
	DecK
	GrowWidth
	GrowHeight
	ShrinkWidth
	ShrinkHeight
)

var commandNames = map[Command]string{
	IncK:         "inc-k",
	DecK:         "dec-k",
	GrowWidth:    "grow-width",
	GrowHeight:   "grow-height",
	ShrinkWidth:  "shrink-width",
	ShrinkHeight: "shrink-height",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand maps the single-key controls "+ - m n j k" to commands.
func ParseCommand(s string) (Command, error) {
	switch s {
	case "+":
		return IncK, nil
	case "-":
		return DecK, nil
	case "m":
		return GrowWidth, nil
	case "n":
		return GrowHeight, nil
	case "j":
		return ShrinkWidth, nil
	case "k":
		return ShrinkHeight, nil
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

// Viewport is the size frames are scaled to before clustering.
type Viewport struct {
	Width  int
	Height int
}

// Session is not safe for concurrent use; Loop serializes access to it.
type Session struct {
	k    int
	view Viewport
	out  []int
	log  *zap.Logger
}

// New creates a session. k below 1 is raised to 1.
func New(k int, view Viewport, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{k: max(k, 1), view: view, log: logger}
}

func (s *Session) K() int { return s.k }

func (s *Session) Viewport() Viewport { return s.view }

// Apply executes cmd and reports whether the state changed.
func (s *Session) Apply(cmd Command) bool {
	switch cmd {
	case IncK:
		s.k++
	case DecK:
		if s.k <= 1 {
			return false
		}
		s.k--
	case GrowWidth:
		s.view.Width += ViewportStep
	case GrowHeight:
		s.view.Height += ViewportStep
	case ShrinkWidth:
		if s.view.Width <= MinViewport {
			return false
		}
		s.view.Width -= ViewportStep
	case ShrinkHeight:
		if s.view.Height <= MinViewport {
			return false
		}
		s.view.Height -= ViewportStep
	default:
		return false
	}
	s.log.Info("session updated",
		zap.Stringer("command", cmd),
		zap.Int("k", s.k),
		zap.Int("width", s.view.Width),
		zap.Int("height", s.view.Height),
	)
	return true
}

// Buffer returns the combined label and centroid buffer for n pixels at the current K,
// reallocating it when the required size changed.
func (s *Session) Buffer(n int) ([]int, error) {
	size, err := imageproc.BufferLen(n, s.k)
	if err != nil {
		return nil, err
	}
	if len(s.out) != size {
		s.out = make([]int, size)
	}
	return s.out, nil
}
