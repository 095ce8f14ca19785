package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info describes the first video stream of an input.
type Info struct {
	Width     int
	Height    int
	FrameRate float64
	HDR       bool
}

type probeOutput struct {
	Streams []struct {
		Width         int             `json:"width"`
		Height        int             `json:"height"`
		AvgFrameRate  string          `json:"avg_frame_rate"`
		ColorTransfer string          `json:"color_transfer"`
		ColorSpace    string          `json:"color_space"`
		MasterDisplay json.RawMessage `json:"master_display"`
	} `json:"streams"`
}

// Probe runs ffprobe once and extracts size, frame rate and HDR metadata.
func Probe(ctx context.Context, url string) (Info, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,color_transfer,color_space,master_display",
		"-of", "json",
		url,
	}
	output, err := exec.CommandContext(ctx, "ffprobe", args...).Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe error: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (Info, error) {
	var data probeOutput
	if err := json.Unmarshal(output, &data); err != nil {
		return Info{}, fmt.Errorf("error parsing ffprobe output: %w", err)
	}
	if len(data.Streams) == 0 {
		return Info{}, fmt.Errorf("no video streams found")
	}
	s := data.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return Info{}, fmt.Errorf("invalid video size %dx%d", s.Width, s.Height)
	}

	rate, err := parseFrameRate(s.AvgFrameRate)
	if err != nil {
		return Info{}, err
	}

	transfer := strings.ToLower(s.ColorTransfer)
	hdr := strings.Contains(transfer, "smpte2084") ||
		strings.Contains(transfer, "arib-std-b67") ||
		strings.Contains(strings.ToLower(s.ColorSpace), "bt2020") ||
		len(s.MasterDisplay) > 0

	return Info{Width: s.Width, Height: s.Height, FrameRate: rate, HDR: hdr}, nil
}

// parseFrameRate accepts "30", "29.97" and rationals like "24000/1001".
func parseFrameRate(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, fmt.Errorf("invalid framerate format %q", s)
		}
		return n / d, nil
	}
	rate, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid framerate: %w", err)
	}
	return rate, nil
}

// ParseTime converts "HH:MM:SS", "MM:SS" or plain seconds to seconds.
func ParseTime(s string) (float64, error) {
	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		return seconds, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time format: %s", s)
		}
		total = total*60 + v
	}
	return total, nil
}
