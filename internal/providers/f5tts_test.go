package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeF5 struct {
	polls       atomic.Int32
	pendingFor  int32
	finalStatus string

	mu        sync.Mutex
	submitted f5SubmitRequest
}

func (f *fakeF5) lastSubmit() f5SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

func (f *fakeF5) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tts", func(w http.ResponseWriter, r *http.Request) {
		var req f5SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode submit: %v", err)
		}
		f.mu.Lock()
		f.submitted = req
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"task_id":"abc","status":"pending","message":"queued"}`))
	})
	mux.HandleFunc("GET /task/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "abc" {
			http.NotFound(w, r)
			return
		}
		n := f.polls.Add(1)
		switch {
		case n <= f.pendingFor:
			_, _ = w.Write([]byte(`{"task_id":"abc","status":"processing","progress":0.3,"audio_url":null,"error_message":null}`))
		case f.finalStatus == "failed":
			_, _ = w.Write([]byte(`{"task_id":"abc","status":"failed","error_message":"model exploded"}`))
		default:
			_, _ = w.Write([]byte(`{"task_id":"abc","status":"completed","progress":1.0,"audio_url":"/audio/abc.wav"}`))
		}
	})
	mux.HandleFunc("GET /audio/{file}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("file") != "abc.wav" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("RIFF-wav-bytes"))
	})
	return mux
}

func newTestF5Client(url string) *F5TTSClient {
	return NewF5TTSClient(F5TTSConfig{
		BaseURL:      url,
		Speed:        1.2,
		RefText:      "参考",
		PollInterval: 5 * time.Millisecond,
		Timeout:      5 * time.Second,
		Retry:        fastPolicy(3),
	})
}

func TestF5TTS_SubmitPollDownload(t *testing.T) {
	fake := &fakeF5{pendingFor: 2}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	result, err := newTestF5Client(server.URL).Synthesize(context.Background(), &SpeechRequest{Text: "你好。"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(result.Audio) != "RIFF-wav-bytes" {
		t.Fatalf("unexpected audio: %q", result.Audio)
	}
	if result.Format != "wav" {
		t.Fatalf("expected wav, got %q", result.Format)
	}
	if fake.polls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", fake.polls.Load())
	}
	submitted := fake.lastSubmit()
	if submitted.Language != "auto" || !submitted.RemoveSilence {
		t.Fatalf("unexpected submit payload: %+v", submitted)
	}
	if submitted.Speed != 1.2 || submitted.RefText != "参考" {
		t.Fatalf("expected configured speed and ref text, got %+v", submitted)
	}
}

func TestF5TTS_TaskFailed(t *testing.T) {
	fake := &fakeF5{finalStatus: "failed"}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	_, err := newTestF5Client(server.URL).Synthesize(context.Background(), &SpeechRequest{Text: "你好。"})
	var failed *SynthesisFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected SynthesisFailedError, got %v", err)
	}
	if failed.Message != "model exploded" {
		t.Fatalf("unexpected message: %q", failed.Message)
	}
}

func TestF5TTS_Timeout(t *testing.T) {
	fake := &fakeF5{pendingFor: 1 << 30}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	client := NewF5TTSClient(F5TTSConfig{
		BaseURL:      server.URL,
		PollInterval: 5 * time.Millisecond,
		Timeout:      50 * time.Millisecond,
		Retry:        fastPolicy(1),
	})
	_, err := client.Synthesize(context.Background(), &SpeechRequest{Text: "你好。"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestF5TTS_SubmitRejected(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "model not initialized", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestF5Client(server.URL).Synthesize(context.Background(), &SpeechRequest{Text: "你好。"})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 submit attempts, got %d", hits.Load())
	}
}

func TestF5TTS_EmptyText(t *testing.T) {
	if _, err := newTestF5Client("http://unused").Synthesize(context.Background(), &SpeechRequest{Text: "  "}); err == nil {
		t.Fatal("expected error for empty text")
	}
}
