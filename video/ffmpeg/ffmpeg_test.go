package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/img2ascii/imageutil"
	"github.com/wbrown/img2ascii/video"
)

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001"},
			{"codec_type": "audio"}
		],
		"format": {"duration": "12.480000"}
	}`)
	meta, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, 1920, meta.Width)
	assert.Equal(t, 1080, meta.Height)
	assert.InDelta(t, 29.97, meta.FPS, 0.001)
	assert.InDelta(t, 12.48, meta.Duration, 1e-9)
	assert.True(t, meta.HasAudio)
}

func TestParseProbeFallsBackToRFrameRate(t *testing.T) {
	out := []byte(`{"streams": [{"codec_type": "video", "width": 64, "height": 48, "r_frame_rate": "25/1", "avg_frame_rate": "0/0"}], "format": {}}`)
	meta, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, 25.0, meta.FPS)
	assert.False(t, meta.HasAudio)
	assert.Zero(t, meta.Duration)
}

func TestParseProbeErrors(t *testing.T) {
	_, err := parseProbe([]byte(`{"streams": [{"codec_type": "audio"}]}`))
	assert.Error(t, err)
	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	tests := map[string]float64{
		"30/1":       30,
		"24000/1001": 24000.0 / 1001.0,
		"25":         25,
		"0/0":        0,
		"":           0,
		"abc/1":      0,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseRate(in), "parseRate(%q)", in)
	}
}

func TestProgressFraction(t *testing.T) {
	f, ok := progressFraction("out_time_us=500000", 1_000_000)
	assert.True(t, ok)
	assert.Equal(t, 0.5, f)

	f, ok = progressFraction("out_time_us=3000000", 1_000_000)
	assert.True(t, ok)
	assert.Equal(t, 1.0, f, "overshoot is clamped")

	for _, line := range []string{"out_time_us=N/A", "frame=12", "out_time_us=-5", "out_time_us=x"} {
		_, ok := progressFraction(line, 1_000_000)
		assert.False(t, ok, line)
	}
	_, ok = progressFraction("out_time_us=10", 0)
	assert.False(t, ok, "unknown duration")
}

func writeFrames(t *testing.T, dir string, indices ...int) {
	t.Helper()
	for _, i := range indices {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf(framePattern, i)), []byte("x"), 0o644))
	}
}

func TestScanFrames(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 3, 4, 5, 6)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	fs, err := scanFrames(dir)
	require.NoError(t, err)
	assert.Equal(t, video.FrameSet{Start: 3, Count: 4}, fs)
	assert.Equal(t, 6, fs.Last())
}

func TestScanFramesErrors(t *testing.T) {
	empty := t.TempDir()
	_, err := scanFrames(empty)
	assert.ErrorIs(t, err, video.ErrNoFrames)

	gappy := t.TempDir()
	writeFrames(t, gappy, 1, 2, 4)
	_, err = scanFrames(gappy)
	assert.Error(t, err)
}

func TestEncodeArgs(t *testing.T) {
	req := video.EncodeRequest{
		Frames:       video.FrameSet{Start: 5, Count: 10},
		FPS:          24,
		IncludeAudio: true,
		Video:        video.DefaultVideoCodec,
		Audio:        video.DefaultAudioCodec,
	}
	args := strings.Join(encodeArgs("/work", req, "/work/out.mp4"), " ")
	assert.Contains(t, args, "-framerate 24 -start_number 5 -i /work/encoded/frame_%06d.png")
	assert.Contains(t, args, "-i /work/audio.m4a")
	assert.Contains(t, args, "-c:v libx264 -preset medium -crf 23 -pix_fmt yuv420p")
	assert.Contains(t, args, "-c:a aac -b:a 128k")
	assert.Contains(t, args, "pad=ceil(iw/2)*2:ceil(ih/2)*2")
	assert.True(t, strings.HasSuffix(args, "/work/out.mp4"))

	req.IncludeAudio = false
	args = strings.Join(encodeArgs("/work", req, "/work/out.mp4"), " ")
	assert.NotContains(t, args, "audio.m4a")
	assert.NotContains(t, args, "-c:a")
}

func TestExtractFilter(t *testing.T) {
	assert.Equal(t, "fps=29.97,scale='min(640,iw)':-2", extractFilter(29.97, 640))
	assert.Equal(t, "fps=12", extractFilter(12, 0))
}

func TestWorkspaceLifecycle(t *testing.T) {
	tr := &Transcoder{tempDir: t.TempDir(), logger: hclog.NewNullLogger()}
	ctx := context.Background()

	png, err := imageutil.EncodePNG(imageutil.CreateGradientImage(8, 4))
	require.NoError(t, err)
	require.NoError(t, tr.StoreEncodedFrame(ctx, 2, png))

	dir := tr.workDir
	require.NotEmpty(t, dir)
	assert.FileExists(t, filepath.Join(dir, encodedDir, "frame_000002.png"))

	// Pretend extraction produced frames 2..3.
	require.NoError(t, os.WriteFile(tr.framePath(extractDir, 2), png, 0o644))
	require.NoError(t, os.WriteFile(tr.framePath(extractDir, 3), png, 0o644))
	tr.frames, err = scanFrames(filepath.Join(dir, extractDir))
	require.NoError(t, err)

	img, err := tr.Frame(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Width())
	_, err = tr.Frame(ctx, 4)
	assert.Error(t, err)

	require.NoError(t, tr.Discard(ctx))
	assert.NoDirExists(t, dir)
	require.NoError(t, tr.Discard(ctx), "second discard is a no-op")
	_, err = tr.Frame(ctx, 2)
	assert.Error(t, err)
}
