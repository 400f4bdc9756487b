package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/wbrown/img2ascii/video"
)

// runWithProgress runs ffmpeg with machine-readable progress on stdout and
// reports out_time against durationUs.
func (t *Transcoder) runWithProgress(ctx context.Context, durationUs int64, onProgress video.FractionFunc, args ...string) error {
	progressArgs := append([]string{"-hide_banner", "-y", "-progress", "pipe:1", "-stats_period", "0.5", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, t.ffmpeg, progressArgs...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf

	t.logger.Trace("running ffmpeg", "args", progressArgs)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	report(onProgress, 0)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "progress=end" {
			report(onProgress, 1)
			continue
		}
		if f, ok := progressFraction(line, durationUs); ok {
			report(onProgress, f)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, lastLines(stderrBuf.String(), 5))
	}
	return nil
}

// progressFraction parses one `-progress` line. Only out_time_us lines
// with a known duration produce a value; N/A is skipped.
func progressFraction(line string, durationUs int64) (float64, bool) {
	v, ok := strings.CutPrefix(line, "out_time_us=")
	if !ok || v == "N/A" || durationUs <= 0 {
		return 0, false
	}
	us, err := strconv.ParseInt(v, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	f := float64(us) / float64(durationUs)
	if f > 1 {
		f = 1
	}
	return f, true
}

func report(fn video.FractionFunc, f float64) {
	if fn != nil {
		fn(f)
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
