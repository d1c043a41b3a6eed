package logger

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"time"
)

var urgentLevels = [][]byte{
	[]byte(`"level":"error"`),
	[]byte(`"level":"fatal"`),
	[]byte(`"level":"panic"`),
	[]byte("ERROR"),
	[]byte("FATAL"),
}

// SmartWriter buffers log lines and flushes them on a timer, when the
// buffer fills, or right away for error and fatal lines.
type SmartWriter struct {
	mu       sync.Mutex
	buf      *bufio.Writer
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewSmartWriter starts the background flusher.
func NewSmartWriter(w io.Writer, flushInterval time.Duration) *SmartWriter {
	sw := &SmartWriter{
		buf:      bufio.NewWriterSize(w, 256*1024),
		interval: flushInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go sw.loop()
	return sw
}

func (sw *SmartWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	n, err := sw.buf.Write(p)
	if err != nil {
		return n, err
	}
	if isUrgent(p) {
		err = sw.buf.Flush()
	}
	return n, err
}

// Sync flushes the buffer
func (sw *SmartWriter) Sync() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.buf.Flush()
}

// Close stops the flusher and writes what is left. Calling it twice is fine.
func (sw *SmartWriter) Close() error {
	sw.once.Do(func() {
		close(sw.stop)
		<-sw.done
	})
	return sw.Sync()
}

func (sw *SmartWriter) loop() {
	defer close(sw.done)
	t := time.NewTicker(sw.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = sw.Sync()
		case <-sw.stop:
			return
		}
	}
}

func isUrgent(p []byte) bool {
	for _, lvl := range urgentLevels {
		if bytes.Contains(p, lvl) {
			return true
		}
	}
	return false
}
