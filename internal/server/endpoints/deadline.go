package endpoints

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// syncWriteTimeout bounds handlers that work or stream for longer than
// the server-wide write deadline allows. It matches the CLI client
// timeout.
const syncWriteTimeout = 10 * time.Minute

// extendWriteDeadline pushes the connection write deadline d into the
// future. Writers without deadline support are left alone.
func extendWriteDeadline(w http.ResponseWriter, d time.Duration) {
	err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(d))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Warn("failed to extend write deadline", "error", err)
	}
}
