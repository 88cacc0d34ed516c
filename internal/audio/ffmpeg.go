package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Output format shared by every encode.
const (
	sampleRate    = 44100
	channelLayout = "stereo"
)

// FFmpeg runs the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *slog.Logger
}

// NewFFmpeg uses the binaries found on PATH.
func NewFFmpeg(logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Logger:      logger.With("component", "ffmpeg"),
	}
}

// CheckFFmpegAvailable checks if ffmpeg and ffprobe are available.
func CheckFFmpegAvailable() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	return nil
}

// Concat re-encodes inputs into one MP3, separated by generated silence.
func (f *FFmpeg) Concat(ctx context.Context, inputs []string, output string, opts ConcatOptions) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}
	args := concatArgs(inputs, output, opts)
	f.Logger.Debug("running ffmpeg concat", "inputs", len(inputs), "output", output, "gap", opts.Gap)
	return f.run(ctx, args)
}

// concatArgs builds a filter graph that normalizes every input and
// interleaves anullsrc silence between them.
func concatArgs(inputs []string, output string, opts ConcatOptions) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	format := fmt.Sprintf("aresample=%d,aformat=sample_rates=%d:channel_layouts=%s", sampleRate, sampleRate, channelLayout)
	var (
		graph  []string
		labels []string
	)
	for i := range inputs {
		graph = append(graph, fmt.Sprintf("[%d:a]%s[a%d]", i, format, i))
		labels = append(labels, fmt.Sprintf("[a%d]", i))
		if i < len(inputs)-1 && opts.Gap > 0 {
			graph = append(graph, fmt.Sprintf("anullsrc=r=%d:cl=%s:d=%s[g%d]", sampleRate, channelLayout, seconds(opts.Gap), i))
			labels = append(labels, fmt.Sprintf("[g%d]", i))
		}
	}
	graph = append(graph, fmt.Sprintf("%sconcat=n=%d:v=0:a=1[out]", strings.Join(labels, ""), len(labels)))

	args = append(args,
		"-filter_complex", strings.Join(graph, ";"),
		"-map", "[out]",
		"-c:a", "libmp3lame",
	)
	if opts.Bitrate != "" {
		args = append(args, "-b:a", opts.Bitrate)
	}
	for _, k := range sortedKeys(opts.Tags) {
		args = append(args, "-metadata", k+"="+opts.Tags[k])
	}
	if len(opts.Tags) > 0 {
		args = append(args, "-id3v2_version", "3")
	}
	return append(args, output)
}

// Probe uses ffprobe to read the container duration.
func (f *FFmpeg) Probe(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe failed on %s: %w", path, err)
	}
	return parseDuration(string(out))
}

// Cut extracts a window of input.
func (f *FFmpeg) Cut(ctx context.Context, input, output string, start, length time.Duration, bitrate string) error {
	args := []string{"-hide_banner", "-loglevel", "error", "-y",
		"-ss", seconds(start),
		"-t", seconds(length),
		"-i", input,
		"-c:a", "libmp3lame",
	}
	if bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	return f.run(ctx, append(args, output))
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.FFmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(s), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func sortedKeys(tags Tags) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var _ Encoder = (*FFmpeg)(nil)
