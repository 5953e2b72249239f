package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bimmerbailey/rumcollect/internal/privacy"
)

// EventWriter persists events. *Fanout implements it.
type EventWriter interface {
	Write(ctx context.Context, ev Event) error
}

// Options configures a Handler.
type Options struct {
	Pipeline *privacy.Pipeline
	Sinks    EventWriter
	Limiter  *Limiter // nil disables rate limiting
	Logger   *slog.Logger
	Host     string // reported as the event host; empty uses the request host
	Version  string
	Now      func() time.Time
}

// Handler is the collector's HTTP entry point.
type Handler struct {
	pipeline *privacy.Pipeline
	sinks    EventWriter
	limiter  *Limiter
	log      *slog.Logger
	host     string
	version  string
	now      func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		pipeline: opts.Pipeline,
		sinks:    opts.Sinks,
		limiter:  opts.Limiter,
		log:      opts.Logger,
		host:     opts.Host,
		version:  opts.Version,
		now:      opts.Now,
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// A percent escape is only allowed for '^' in a semver range.
var validEscape = regexp.MustCompile(`%5[Ee](?:\d|$)`)

// ValidPath rejects paths with percent escapes other than a single %5E
// per segment, and paths that decode to contain ".." or ":".
func ValidPath(escaped string) bool {
	if strings.Contains(escaped, "%") {
		for _, seg := range strings.Split(escaped, "/") {
			if !strings.Contains(seg, "%") {
				continue
			}
			if strings.Count(seg, "%") != 1 || !validEscape.MatchString(seg) {
				return false
			}
		}
	}

	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return false
	}
	return !strings.Contains(decoded, "..") && !strings.Contains(decoded, ":")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		h.respondCORS(w)
		return
	}

	if !ValidPath(r.URL.EscapedPath()) {
		h.respondError(w, r, &RequestError{Status: http.StatusBadRequest, Message: "Invalid path"})
		return
	}

	if r.Method == http.MethodGet {
		switch {
		case strings.HasPrefix(r.URL.Path, "/robots.txt"):
			h.respondRobots(w)
			return
		case strings.HasPrefix(r.URL.Path, "/info.json"):
			h.respondInfo(w)
			return
		}
	}

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		h.respondError(w, r, &RequestError{Status: http.StatusTooManyRequests, Message: "rate limit exceeded"})
		return
	}

	beacon, err := DecodeBeacon(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	ev, counts := NewEvent(beacon, r, h.pipeline, h.host, h.now())
	if n := counts.Total(); n > 0 {
		h.log.Debug("redacted beacon", "id", ev.ID, "replacements", n)
	}

	if err := h.sinks.Write(r.Context(), ev); err != nil {
		h.respondError(w, r, &RequestError{
			Status:  http.StatusInternalServerError,
			Message: fmt.Sprintf("Could not collect RUM: %v", err),
		})
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Cross-Origin-Resource-Policy", "cross-origin")
	header.Set("X-Frame-Options", "DENY")
	w.WriteHeader(http.StatusCreated)
	fmt.Fprint(w, "rum collected.")
}

func (h *Handler) respondCORS(w http.ResponseWriter) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type")
	header.Set("X-Frame-Options", "DENY")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondInfo(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Frame-Options", "DENY")
	json.NewEncoder(w).Encode(map[string]string{
		"platform": "rumcollect",
		"version":  h.version,
	})
}

func (h *Handler) respondRobots(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.Status
	}
	msg := err.Error()

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	h.log.Log(r.Context(), level, "request failed", "status", status, "method", r.Method, "path", r.URL.Path, "error", msg)

	// Header values cannot carry newlines.
	header := w.Header()
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("X-Frame-Options", "DENY")
	header.Set("X-Error", strings.NewReplacer("\r", " ", "\n", " ").Replace(msg))
	w.WriteHeader(status)
	fmt.Fprintln(w, msg)
}

// clientKey identifies the client for rate limiting.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
