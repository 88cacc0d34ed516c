package endpoints

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtendWriteDeadline(t *testing.T) {
	slow := func(extend bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if extend {
				extendWriteDeadline(w, time.Minute)
			}
			time.Sleep(300 * time.Millisecond)
			writeJSON(w, http.StatusOK, map[string]string{"status": "done"})
		}
	}

	tests := []struct {
		name   string
		extend bool
		wantOK bool
	}{
		{name: "extended", extend: true, wantOK: true},
		{name: "server deadline", extend: false, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewUnstartedServer(slow(tt.extend))
			srv.Config.WriteTimeout = 100 * time.Millisecond
			srv.Start()
			defer srv.Close()

			resp, err := http.Get(srv.URL)
			if err == nil {
				_, err = io.ReadAll(resp.Body)
				resp.Body.Close()
			}
			if ok := err == nil && resp.StatusCode == http.StatusOK; ok != tt.wantOK {
				t.Fatalf("expected success %v, got err=%v", tt.wantOK, err)
			}
		})
	}
}

func TestExtendWriteDeadline_Recorder(t *testing.T) {
	rec := httptest.NewRecorder()
	extendWriteDeadline(rec, syncWriteTimeout)
	writeJSON(rec, http.StatusOK, map[string]string{"status": "done"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
