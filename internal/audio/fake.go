package audio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// FakeEncoder is an in-process Encoder for tests. Files it writes hold
// the concatenated input bytes; durations are tracked per path.
type FakeEncoder struct {
	// Default is the duration reported for paths with no recorded length.
	Default time.Duration
	// FailConcat makes Concat return this error.
	FailConcat error

	mu        sync.Mutex
	durations map[string]time.Duration
	concats   []ConcatCall
	cuts      int
}

// ConcatCall records one Concat invocation.
type ConcatCall struct {
	Inputs []string
	Output string
	Opts   ConcatOptions
}

// NewFakeEncoder returns a fake reporting def for unknown files.
func NewFakeEncoder(def time.Duration) *FakeEncoder {
	return &FakeEncoder{Default: def, durations: make(map[string]time.Duration)}
}

// SetDuration records the length of path.
func (f *FakeEncoder) SetDuration(path string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[path] = d
}

// Concats returns the recorded Concat calls.
func (f *FakeEncoder) Concats() []ConcatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ConcatCall(nil), f.concats...)
}

// Concat implements Encoder.
func (f *FakeEncoder) Concat(ctx context.Context, inputs []string, output string, opts ConcatOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.FailConcat != nil {
		return f.FailConcat
	}

	var (
		data      []byte
		durations []time.Duration
	)
	for _, in := range inputs {
		b, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("fake concat: %w", err)
		}
		data = append(data, b...)
		d, _ := f.Probe(ctx, in)
		durations = append(durations, d)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[output] = ExpectedDuration(durations, opts.Gap)
	f.concats = append(f.concats, ConcatCall{Inputs: append([]string(nil), inputs...), Output: output, Opts: opts})
	return nil
}

// Probe implements Encoder.
func (f *FakeEncoder) Probe(ctx context.Context, path string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.durations[path]; ok {
		return d, nil
	}
	return f.Default, nil
}

// Cut implements Encoder.
func (f *FakeEncoder) Cut(ctx context.Context, input, output string, start, length time.Duration, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(output, []byte(fmt.Sprintf("%s@%s+%s", input, start, length)), 0o644); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[output] = length
	f.cuts++
	return nil
}

var _ Encoder = (*FakeEncoder)(nil)
