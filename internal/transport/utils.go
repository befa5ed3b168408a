package transport

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// readSize is the amount requested from the stream per read.
const readSize = 4096

// sendBody pulls chunks of at most size bytes from body and hands each to fn.
func sendBody(body io.Reader, size int, fn func([]byte) error) error {
	buf := make([]byte, size)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if err := fn(buf[:n]); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// watchdog runs cancel if it is not stopped within the armed timeout.
type watchdog struct {
	cancel func()
	timer  *time.Timer
	fired  atomic.Bool
}

func newWatchdog(cancel func()) *watchdog {
	return &watchdog{cancel: cancel}
}

func (w *watchdog) arm(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	w.timer = time.AfterFunc(timeout, func() {
		w.fired.Store(true)
		w.cancel()
	})
}

// stop disarms the watchdog and reports whether it already fired.
func (w *watchdog) stop() bool {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	return w.fired.Load()
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
