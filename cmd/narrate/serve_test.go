package main

import (
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
)

func findCommand(name string) *cobra.Command {
	for _, c := range rootCmd.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAPICommandTree(t *testing.T) {
	api := findCommand("api")
	if api == nil {
		t.Fatal("api command not registered")
	}
	for _, name := range []string{"books", "chapters", "tasks"} {
		found := false
		for _, c := range api.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("api %s group missing", name)
		}
	}
	if api.PersistentFlags().Lookup("server") == nil {
		t.Error("api --server flag missing")
	}
}
