// Package audio concatenates, probes and splits audio files.
//
// The heavy lifting is done by an Encoder; FFmpeg is the production
// implementation and tests substitute their own.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"
)

// ErrNoInputs is returned when a merge is asked to join nothing.
var ErrNoInputs = errors.New("no input files provided")

// Tags are ID3 metadata written into an encoded file.
type Tags map[string]string

// ConcatOptions control how inputs are joined.
type ConcatOptions struct {
	Gap     time.Duration // silence inserted between consecutive inputs
	Bitrate string        // e.g. "128k"
	Tags    Tags
}

// Encoder is the set of media operations the pipeline needs.
type Encoder interface {
	// Concat joins inputs in order into output, re-encoding to MP3.
	Concat(ctx context.Context, inputs []string, output string, opts ConcatOptions) error
	// Probe returns the playback duration of path.
	Probe(ctx context.Context, path string) (time.Duration, error)
	// Cut writes the [start, start+length) window of input to output.
	Cut(ctx context.Context, input, output string, start, length time.Duration, bitrate string) error
}

// MergeResult describes a merged artifact.
type MergeResult struct {
	Path       string        `json:"path"`
	Duration   time.Duration `json:"duration"`
	InputCount int           `json:"input_count"`
	CreatedAt  time.Time     `json:"created_at"`

	// InputDurations are the probed input lengths, in input order.
	InputDurations []time.Duration `json:"input_durations"`
}

// ExpectedDuration is the length of inputs joined with gap between each
// consecutive pair.
func ExpectedDuration(durations []time.Duration, gap time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total + time.Duration(len(durations)-1)*gap
}

// Merge probes every input, joins them in order and reports the merged
// duration as the input durations plus one gap per join.
func Merge(ctx context.Context, enc Encoder, inputs []string, output string, opts ConcatOptions) (*MergeResult, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	durations := make([]time.Duration, len(inputs))
	for i, in := range inputs {
		d, err := enc.Probe(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to probe input %d (%s): %w", i, in, err)
		}
		durations[i] = d
	}

	if err := enc.Concat(ctx, inputs, output, opts); err != nil {
		return nil, fmt.Errorf("failed to merge %d files: %w", len(inputs), err)
	}
	if _, err := os.Stat(output); err != nil {
		return nil, fmt.Errorf("merged file missing: %w", err)
	}

	return &MergeResult{
		Path:       output,
		Duration:   ExpectedDuration(durations, opts.Gap),
		InputCount: len(inputs),
		CreatedAt:  time.Now().UTC(),

		InputDurations: durations,
	}, nil
}

// Piece is one window of a split file.
type Piece struct {
	Index int
	Path  string
	Start time.Duration
	End   time.Duration
}

// Duration returns the window length.
func (p Piece) Duration() time.Duration {
	return p.End - p.Start
}

// Split cuts input into consecutive windows of at most window length.
// name maps a zero-based window index to its output path.
func Split(ctx context.Context, enc Encoder, input string, window time.Duration, bitrate string, name func(i int) string) ([]Piece, error) {
	if window <= 0 {
		return nil, fmt.Errorf("split window must be positive, got %s", window)
	}
	total, err := enc.Probe(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", input, err)
	}
	if total <= 0 {
		return nil, fmt.Errorf("%s has no audio", input)
	}

	count := int(math.Ceil(float64(total) / float64(window)))
	pieces := make([]Piece, 0, count)
	for i := 0; i < count; i++ {
		start := time.Duration(i) * window
		end := min(start+window, total)
		out := name(i)
		if err := enc.Cut(ctx, input, out, start, end-start, bitrate); err != nil {
			return pieces, fmt.Errorf("failed to cut window %d: %w", i, err)
		}
		pieces = append(pieces, Piece{Index: i, Path: out, Start: start, End: end})
	}
	return pieces, nil
}
