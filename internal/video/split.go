package video

import (
	"fmt"
	"io"
)

// SplitFrames slices a raw rgb24 dump into frames of width x height. The frames alias
// buffer; a trailing partial frame is dropped.
func SplitFrames(buffer []byte, width, height int) ([][]byte, error) {
	frameSize := width * height * 3
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	frames := make([][]byte, 0, len(buffer)/frameSize)
	for i := 0; i+frameSize <= len(buffer); i += frameSize {
		frames = append(frames, buffer[i:i+frameSize:i+frameSize])
	}
	return frames, nil
}

// sliceSource replays in-memory frames.
type sliceSource struct {
	frames    [][]byte
	frameSize int
	next      int
}

func (s *sliceSource) FrameSize() int { return s.frameSize }

func (s *sliceSource) ReadFrame(buf []byte) error {
	if s.next >= len(s.frames) {
		return io.EOF
	}
	copy(buf, s.frames[s.next])
	s.next++
	return nil
}
