package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/img2ascii"
	"github.com/wbrown/img2ascii/imageutil"
	"github.com/wbrown/img2ascii/internal/config"
	"github.com/wbrown/img2ascii/video"
)

// execute runs the root command against a config path in a temp dir.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writeGray(t *testing.T, v uint8) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gray.png")
	img := imageutil.CreateSolidImage(100, 100, imageutil.RGB{R: v, G: v, B: v})
	require.NoError(t, imageutil.SaveImage(img, path))
	return path
}

func TestImageToStdout(t *testing.T) {
	out, _, err := execute(t, "image", writeGray(t, 128), "--width", "20")
	require.NoError(t, err)

	rows := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, rows, 10)
	for _, row := range rows {
		assert.Equal(t, strings.Repeat("=", 20), row)
	}
}

func TestImageColorUsesANSI(t *testing.T) {
	out, _, err := execute(t, "image", writeGray(t, 128), "--width", "20", "--color", "color")
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[38;2;")
}

func TestImageToPNG(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.png")
	_, _, err := execute(t, "image", writeGray(t, 200), "-w", "20", "-o", dst)
	require.NoError(t, err)

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestImageRejectsBadOptions(t *testing.T) {
	src := writeGray(t, 128)
	for _, args := range [][]string{
		{"image", src, "--width", "5"},
		{"image", src, "--saturation", "4"},
		{"image", src, "--converter", "braille"},
		{"image", src, "-o", "out.gif"},
	} {
		_, _, err := execute(t, args...)
		assert.Error(t, err, args)
	}
}

func TestConvertersCommand(t *testing.T) {
	out, _, err := execute(t, "converters")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "* density"))
	assert.True(t, strings.HasPrefix(lines[1], "  edge"))
}

func TestConfigInitAndShow(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "img2ascii", "config.yaml")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "config", "init"})
	require.NoError(t, root.Execute())

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)

	// A second init refuses to overwrite.
	root = newRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "config", "init"})
	assert.Error(t, root.Execute())

	var out bytes.Buffer
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "config", "show"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "converter: density")
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	var f conversionFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse([]string{"--saturation", "1.5", "-w", "40"}))

	cfg := config.Default()
	cfg.Conversion.Color = "color"
	cfg.Conversion.Converter = img2ascii.EdgeName

	opts, err := f.options(fs, &cfg)
	require.NoError(t, err)
	assert.Equal(t, 40, opts.Width)
	assert.Equal(t, 1.5, opts.Saturation)
	// Unset flags keep the file's values rather than the flag defaults.
	assert.Equal(t, img2ascii.Color, opts.ColorMode)
	assert.Equal(t, img2ascii.EdgeName, cfg.Conversion.Converter)
}

func TestOutputKind(t *testing.T) {
	tests := map[string]string{
		"a.txt":  outputText,
		"a.ANS":  outputANSI,
		"a.ansi": outputANSI,
		"a.png":  outputPNG,
		"a.webp": outputWebP,
	}
	for path, want := range tests {
		got, err := outputKind(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	_, err := outputKind("a.mp4")
	assert.Error(t, err)
}

func TestUnknownBackend(t *testing.T) {
	a := &app{cfg: func() *config.Config { c := config.Default(); return &c }(), logger: hclog.NewNullLogger()}
	_, err := a.transcoder("vlc")
	assert.ErrorContains(t, err, "unknown backend")
}

func TestProgressModel(t *testing.T) {
	s := &video.Session{ID: "test", Source: "in.mp4"}
	var m tea.Model = newProgressModel(s)

	m, cmd := m.Update(progressMsg{Phase: video.StateConverting, Fraction: 0.5, Message: "frame 5 of 10"})
	assert.Nil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Converting frames")
	assert.Contains(t, view, "frame 5 of 10")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, s.Cancelled())
	assert.Contains(t, m.View(), "cancelling")

	_, cmd = m.Update(runDoneMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPlainReporter(t *testing.T) {
	var buf bytes.Buffer
	r := newPlainReporter(hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Info}))

	r.report(video.Progress{Phase: video.StateExtracting, Fraction: 0})
	r.report(video.Progress{Phase: video.StateExtracting, Fraction: 0.01})
	r.report(video.Progress{Phase: video.StateExtracting, Fraction: 0.05})
	r.report(video.Progress{Phase: video.StateExtracting, Fraction: 0.5})
	r.report(video.Progress{Phase: video.StateConverting, Fraction: 0.5})
	r.report(video.Progress{Phase: video.StateConverting, Fraction: 0.55})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Extracting frames")
	assert.Contains(t, lines[2], "Converting frames")
}
