package ffmpeg

import (
	"io"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseTime(t *testing.T) {
	tests := map[string]float64{
		"0":        0,
		"12.5":     12.5,
		"01:30":    90,
		"00:05:10": 310,
		"1:00:00":  3600,
	}
	for in, want := range tests {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "1:2:3:4", "00:xx:10", "-1:00"} {
		_, err := ParseTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"width":1920,"height":1080,"avg_frame_rate":"24000/1001","color_transfer":"bt709"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 23.976, info.FrameRate, 1e-3)
	assert.False(t, info.HDR)

	info, err = parseProbe([]byte(`{"streams":[{"width":3840,"height":2160,"avg_frame_rate":"60","color_transfer":"smpte2084"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 60.0, info.FrameRate)
	assert.True(t, info.HDR)

	info, err = parseProbe([]byte(`{"streams":[{"width":10,"height":10,"avg_frame_rate":"25/1","master_display":"G(13250,34500)"}]}`))
	require.NoError(t, err)
	assert.True(t, info.HDR)
}

func TestParseProbe_Errors(t *testing.T) {
	for name, in := range map[string]string{
		"not json":   `{`,
		"no streams": `{"streams":[]}`,
		"no size":    `{"streams":[{"avg_frame_rate":"25/1"}]}`,
		"zero rate":  `{"streams":[{"width":1,"height":1,"avg_frame_rate":"0/0"}]}`,
		"bad rate":   `{"streams":[{"width":1,"height":1,"avg_frame_rate":"fast"}]}`,
	} {
		_, err := parseProbe([]byte(in))
		assert.Error(t, err, name)
	}
}

func TestArgs(t *testing.T) {
	args, err := Args(Options{
		URL:                "movie.mkv",
		Width:              320,
		Height:             240,
		SampleEveryNFrames: 5,
		TimeRange:          &TimeRange{Start: "00:01:00", End: "00:01:30"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"-loglevel", "info", "-nostdin",
		"-ss", "00:01:00",
		"-t", "30.000",
		"-probesize", "32M", "-analyzeduration", "10M",
		"-i", "movie.mkv",
		"-vf", `select=not(mod(n\,5)),scale=320:240:flags=neighbor`,
		"-vsync", "vfr",
		"-an", "-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:1",
	}, args)
}

func TestArgs_Network(t *testing.T) {
	args, err := Args(Options{URL: "https://example.com/live.m3u8", FPS: 12.5, Width: 64, Height: 48})
	require.NoError(t, err)
	assert.Contains(t, args, "-reconnect")
	assert.Contains(t, args, "fps=12.5,scale=64:48:flags=neighbor")
	assert.NotContains(t, args, "-vsync")
}

func TestArgs_BadRange(t *testing.T) {
	_, err := Args(Options{URL: "a", TimeRange: &TimeRange{Start: "10", End: "5"}})
	assert.Error(t, err)
	_, err = Args(Options{URL: "a", TimeRange: &TimeRange{Start: "later"}})
	assert.Error(t, err)
}

func TestStream_ReadFrame(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	// two full 2x1 frames followed by a partial one
	cmd := exec.Command("sh", "-c", "printf 'abcdefghijklmn'")
	s, err := start(cmd, 2, 1, zap.NewNop())
	require.NoError(t, err)

	buf := make([]byte, s.FrameSize())
	require.NoError(t, s.ReadFrame(buf))
	assert.Equal(t, "abcdef", string(buf))
	require.NoError(t, s.ReadFrame(buf))
	assert.Equal(t, "ghijkl", string(buf))
	assert.ErrorIs(t, s.ReadFrame(buf), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, s.ReadFrame(buf), io.EOF)

	assert.Error(t, s.ReadFrame(make([]byte, 5)))
	assert.NoError(t, s.Close())
}

func TestStream_CloseReportsFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	s, err := start(exec.Command("sh", "-c", "echo broken >&2; exit 3"), 1, 1, zap.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, s.ReadFrame(make([]byte, 3)), io.EOF)
	assert.Error(t, s.Close())
}

func TestStart_RequiresSize(t *testing.T) {
	_, err := Start(t.Context(), Options{URL: "x"}, nil)
	assert.ErrorContains(t, err, "invalid output size")
}
