package telemetry

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/ovmrun/hatchery/internal/errx"
)

// JSONLWriter writes events as JSON-L to a file. Safe for concurrent
// use.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLWriter opens (creating if needed) path for appending.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errx.Wrap(ErrCreateLogFile, err)
	}
	return &JSONLWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// NewStdoutWriter writes one JSON line per event to f (normally
// os.Stdout) — the CLI's default sink.
func NewStdoutWriter(f *os.File) *JSONLWriter {
	return &JSONLWriter{file: f, enc: json.NewEncoder(f)}
}

func (w *JSONLWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(event); err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	return nil
}

func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == os.Stdout || w.file == os.Stderr {
		return nil
	}
	_ = w.file.Sync()
	if err := w.file.Close(); err != nil {
		return errx.Wrap(ErrCloseWriter, err)
	}
	return nil
}
