package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Logger appends event lines to every configured sink. The first sink is
// usually the durable log file; the rest mirror it, e.g. the console.
type Logger struct {
	mu      sync.Mutex
	sinks   []io.Writer
	closers []io.Closer
	path    string
}

// New returns a logger writing to the given sinks.
func New(sinks ...io.Writer) *Logger {
	l := &Logger{}
	for _, s := range sinks {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
	return l
}

// Open opens path for appending and returns a logger writing to it and to
// the mirrors. An unwritable path is reported here, before any probing.
func Open(path string, mirrors ...io.Writer) (*Logger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("log file path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if info, err := os.Stat(dir); err != nil {
			return nil, errors.Wrapf(err, "log directory %q is not accessible", dir)
		} else if !info.IsDir() {
			return nil, errors.Errorf("log directory %q is not a directory", dir)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open log file %q for writing", path)
	}

	l := New(append([]io.Writer{file}, mirrors...)...)
	l.closers = append(l.closers, file)
	l.path = path
	return l, nil
}

// Path returns the log file path, empty when the logger has no file.
func (l *Logger) Path() string {
	return l.path
}

// Line writes a single line to all sinks.
func (l *Logger) Line(line string) error {
	return l.Lines(line)
}

// Lines writes lines to all sinks, each terminated by a newline. A failing
// sink does not prevent the others from receiving the lines.
func (l *Logger) Lines(lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	payload := b.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	for _, sink := range l.sinks {
		if _, werr := io.WriteString(sink, payload); werr != nil {
			err = multierr.Append(err, fmt.Errorf("write log line: %w", werr))
		}
	}
	return err
}

// Close syncs and closes the file sink.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	for _, c := range l.closers {
		if f, ok := c.(*os.File); ok {
			err = multierr.Append(err, f.Sync())
		}
		err = multierr.Append(err, c.Close())
	}
	l.closers = nil
	return err
}
