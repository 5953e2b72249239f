package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Sink names.
const (
	SinkConsole = "console"
	SinkFile    = "file"
	SinkSlog    = "slog"
)

// Sink persists events. Implementations must be safe for concurrent use.
type Sink interface {
	Name() string
	Write(ctx context.Context, ev Event) error
}

// WriterSink writes one JSON object per line.
type WriterSink struct {
	name string
	mu   sync.Mutex
	w    io.Writer
	c    io.Closer
}

// NewConsoleSink writes events to w, usually stdout.
func NewConsoleSink(w io.Writer) *WriterSink {
	return &WriterSink{name: SinkConsole, w: w}
}

// NewFileSink appends events to the file at path, creating it if needed.
func NewFileSink(path string) (*WriterSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	return &WriterSink{name: SinkFile, w: f, c: f}, nil
}

func (s *WriterSink) Name() string { return s.name }

func (s *WriterSink) Write(_ context.Context, ev Event) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%s sink: %w", s.name, err)
	}
	return nil
}

// Close closes the underlying file, if any.
func (s *WriterSink) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// SlogSink emits each event as a structured log record.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink logs events through log.
func NewSlogSink(log *slog.Logger) *SlogSink {
	return &SlogSink{log: log}
}

func (s *SlogSink) Name() string { return SinkSlog }

func (s *SlogSink) Write(ctx context.Context, ev Event) error {
	attrs := []slog.Attr{
		slog.Int64("time", ev.Time),
		slog.String("host", ev.Host),
		slog.String("url", ev.URL),
		slog.String("user_agent", ev.UserAgent),
		slog.Float64("weight", ev.Weight),
		slog.String("id", ev.ID),
	}
	for _, kv := range [][2]string{
		{"referer", ev.Referer},
		{"generation", ev.Generation},
		{"checkpoint", ev.Checkpoint},
		{"target", ev.Target},
		{"source", ev.Source},
	} {
		if kv[1] != "" {
			attrs = append(attrs, slog.String(kv[0], kv[1]))
		}
	}
	for _, m := range Metrics {
		if v, ok := ev.CWV[m]; ok {
			attrs = append(attrs, slog.Float64(m, v))
		}
	}
	s.log.LogAttrs(ctx, slog.LevelInfo, "rum", attrs...)
	return nil
}

// Fanout writes to every sink concurrently.
type Fanout struct {
	sinks []Sink
}

// NewFanout groups sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Sinks returns the grouped sinks.
func (f *Fanout) Sinks() []Sink {
	return f.sinks
}

// Write sends ev to all sinks and returns the first error.
func (f *Fanout) Write(ctx context.Context, ev Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range f.sinks {
		s := s
		g.Go(func() error {
			return s.Write(ctx, ev)
		})
	}
	return g.Wait()
}

// Close closes every sink that holds resources.
func (f *Fanout) Close() error {
	var first error
	for _, s := range f.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// SinkOptions carries what the named sinks need.
type SinkOptions struct {
	Stdout io.Writer
	File   string
	Logger *slog.Logger
}

// OpenSinks builds a Fanout from sink names. Unknown names are an error.
func OpenSinks(names []string, opts SinkOptions) (*Fanout, error) {
	f := &Fanout{}
	for _, name := range names {
		switch name {
		case SinkConsole:
			w := opts.Stdout
			if w == nil {
				w = os.Stdout
			}
			f.sinks = append(f.sinks, NewConsoleSink(w))
		case SinkFile:
			if opts.File == "" {
				f.Close()
				return nil, fmt.Errorf("file sink requires collector.file")
			}
			s, err := NewFileSink(opts.File)
			if err != nil {
				f.Close()
				return nil, err
			}
			f.sinks = append(f.sinks, s)
		case SinkSlog:
			log := opts.Logger
			if log == nil {
				log = slog.Default()
			}
			f.sinks = append(f.sinks, NewSlogSink(log))
		default:
			f.Close()
			return nil, fmt.Errorf("unknown sink: %s (must be 'console', 'file', or 'slog')", name)
		}
	}
	return f, nil
}
