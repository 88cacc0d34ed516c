package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockTranslator is a Translator for testing. By default it echoes the
// input with a prefix.
type MockTranslator struct {
	Latency time.Duration
	Prefix  string

	// FailAt makes the Nth call (1-based) return Err. 0 never fails.
	FailAt int
	Err    error

	// TranslateFunc overrides the default behavior when set.
	TranslateFunc func(ctx context.Context, text string) (string, error)

	mu    sync.Mutex
	calls []string
	count atomic.Int64
}

// NewMockTranslator creates a mock translator with sensible defaults.
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{Prefix: "译:"}
}

// Name returns the client identifier.
func (m *MockTranslator) Name() string {
	return MockClientName
}

// Translate records the call and returns a canned translation.
func (m *MockTranslator) Translate(ctx context.Context, text, _, _ string) (string, error) {
	n := m.count.Add(1)
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Latency):
		}
	}
	if m.FailAt > 0 && int(n) == m.FailAt {
		if m.Err != nil {
			return "", m.Err
		}
		return "", fmt.Errorf("mock translate failure at call %d", n)
	}
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, text)
	}
	return m.Prefix + strings.TrimSpace(text), nil
}

// Calls returns the texts passed to Translate, in order.
func (m *MockTranslator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockSynthesizer is a SpeechSynthesizer for testing. Audio is the UTF-8
// text itself so tests can check ordering after a merge.
type MockSynthesizer struct {
	Latency time.Duration
	FailAt  int
	Err     error

	mu    sync.Mutex
	texts []string
	count atomic.Int64
}

// Name returns the provider identifier.
func (m *MockSynthesizer) Name() string {
	return MockClientName
}

// Synthesize returns the request text as audio bytes.
func (m *MockSynthesizer) Synthesize(ctx context.Context, req *SpeechRequest) (*SpeechResult, error) {
	n := m.count.Add(1)
	m.mu.Lock()
	m.texts = append(m.texts, req.Text)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}
	if m.FailAt > 0 && int(n) == m.FailAt {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, fmt.Errorf("mock synthesis failure at call %d", n)
	}
	return &SpeechResult{
		Audio:     []byte(req.Text),
		Format:    "wav",
		CharCount: len([]rune(req.Text)),
	}, nil
}

// Texts returns the synthesized texts, in order.
func (m *MockSynthesizer) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

var (
	_ Translator        = (*MockTranslator)(nil)
	_ SpeechSynthesizer = (*MockSynthesizer)(nil)
)
