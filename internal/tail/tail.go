// Package tail follows a collector event log and hands every new record,
// redacted, to a callback.
//
// It implements "tail -f" like functionality with support for pattern matching,
// checkpoint filtering, and log rotation detection.
package tail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bimmerbailey/rumcollect/internal/config"
	"github.com/bimmerbailey/rumcollect/internal/parser"
)

// ErrRotated is returned when the followed file is rotated and
// FollowRotate is off.
var ErrRotated = errors.New("file rotated")

const maxScanTokenSize = 1024 * 1024 // 1MB

// Options configures the tailer behavior.
type Options struct {
	FilePath     string                            // Path to the event log
	Lines        int                               // Number of initial records to show
	Follow       bool                              // Whether to follow the file for new content
	FollowRotate bool                              // Whether to follow through log rotations
	Pattern      *regexp.Regexp                    // Optional regex matched against the redacted URL
	Checkpoint   string                            // Only show records with this checkpoint
	Redact       func(config.Record) config.Record // Applied before filtering; nil leaves records as parsed
	OutputFunc   func(config.Record) error         // Called for each matching record
	Logger       *slog.Logger
}

// Tailer handles tailing an event log with filtering.
type Tailer struct {
	opts    Options
	parser  *parser.Parser
	log     *slog.Logger
	file    *os.File
	offset  int64
	lineNum int
	watcher *fsnotify.Watcher
}

// New creates a new Tailer with the given options.
func New(opts Options) *Tailer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Tailer{
		opts:   opts,
		parser: parser.New(nil),
		log:    log,
	}
}

// Run starts the tailing process. It blocks until context is cancelled or an error occurs.
func (t *Tailer) Run(ctx context.Context) error {
	if err := t.openFile(); err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer t.close()

	if t.opts.Lines > 0 {
		if err := t.readInitialLines(); err != nil {
			return fmt.Errorf("failed to read initial lines: %w", err)
		}
	}

	if !t.opts.Follow {
		return nil
	}

	if err := t.setupWatcher(); err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}

	return t.watch(ctx)
}

func (t *Tailer) openFile() error {
	f, err := os.Open(t.opts.FilePath)
	if err != nil {
		return err
	}
	t.file = f

	stat, err := f.Stat()
	if err != nil {
		return err
	}
	t.offset = stat.Size()
	return nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)
	return scanner
}

// readInitialLines emits the last N matching records of the file.
func (t *Tailer) readInitialLines() error {
	stat, err := t.file.Stat()
	if err != nil {
		return err
	}
	fileSize := stat.Size()
	if fileSize == 0 {
		return nil
	}

	// Beacon events are short JSON lines; 600 bytes per wanted line is plenty.
	startPos := fileSize - int64(t.opts.Lines*600)
	if startPos < 0 {
		startPos = 0
	}
	if _, err := t.file.Seek(startPos, io.SeekStart); err != nil {
		return err
	}

	scanner := newScanner(t.file)
	if startPos > 0 {
		scanner.Scan() // partial line
	}

	var records []config.Record
	for scanner.Scan() {
		t.lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec := t.prepare(line)
		if t.shouldDisplay(rec) {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(records) > t.opts.Lines {
		records = records[len(records)-t.opts.Lines:]
	}
	for _, rec := range records {
		if err := t.opts.OutputFunc(rec); err != nil {
			return err
		}
	}

	t.offset, err = t.file.Seek(0, io.SeekEnd)
	return err
}

func (t *Tailer) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	t.watcher = watcher
	return watcher.Add(t.opts.FilePath)
}

// watch monitors the file for changes and outputs new records.
func (t *Tailer) watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-t.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			if err := t.handleEvent(ctx, event); err != nil {
				return err
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (t *Tailer) handleEvent(ctx context.Context, event fsnotify.Event) error {
	switch {
	case event.Has(fsnotify.Write):
		return t.readNewContent()
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		return t.handleRotation(ctx)
	}
	return nil
}

// readNewContent emits records appended since the last read. A file that
// shrank was truncated in place and is read from the start.
func (t *Tailer) readNewContent() error {
	if stat, err := t.file.Stat(); err == nil && stat.Size() < t.offset {
		t.log.Info("event log truncated, reading from start", "file", t.opts.FilePath)
		t.offset = 0
	}
	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}

	scanner := newScanner(t.file)
	for scanner.Scan() {
		t.lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec := t.prepare(line)
		if t.shouldDisplay(rec) {
			if err := t.opts.OutputFunc(rec); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	var err error
	t.offset, err = t.file.Seek(0, io.SeekCurrent)
	return err
}

func (t *Tailer) handleRotation(ctx context.Context) error {
	if !t.opts.FollowRotate {
		t.log.Warn("file rotated, use --follow-rotate to follow through rotations", "file", t.opts.FilePath)
		return ErrRotated
	}

	if t.file != nil {
		t.file.Close()
		t.file = nil
	}

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timeout:
			return fmt.Errorf("timeout waiting for rotated file to reappear")
		case <-ticker.C:
			f, err := os.Open(t.opts.FilePath)
			if err != nil {
				continue
			}
			t.file = f
			t.offset = 0
			t.lineNum = 0

			if err := t.watcher.Add(t.opts.FilePath); err != nil {
				return fmt.Errorf("failed to watch rotated file: %w", err)
			}
			t.log.Info("file rotated, following new file", "file", t.opts.FilePath)
			return t.readNewContent()
		}
	}
}

// prepare parses and redacts a line.
func (t *Tailer) prepare(line string) config.Record {
	rec := t.parser.ParseLine(line, t.lineNum)
	rec.File = t.opts.FilePath
	if t.opts.Redact != nil {
		rec = t.opts.Redact(rec)
	}
	return rec
}

// shouldDisplay checks if a record matches the filter criteria.
func (t *Tailer) shouldDisplay(rec config.Record) bool {
	if t.opts.Checkpoint != "" && rec.Checkpoint != t.opts.Checkpoint {
		return false
	}
	if t.opts.Pattern != nil && !t.opts.Pattern.MatchString(rec.URL) {
		return false
	}
	return true
}

func (t *Tailer) close() {
	if t.file != nil {
		t.file.Close()
	}
	if t.watcher != nil {
		t.watcher.Close()
	}
}
