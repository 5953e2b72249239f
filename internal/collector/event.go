package collector

import (
	"net"
	"net/http"
	"time"

	"github.com/bimmerbailey/rumcollect/internal/privacy"
)

// Event is what gets persisted for a beacon. Every URL field has been
// through the redaction pipeline and the time and user agent are masked.
type Event struct {
	Time       int64              `json:"time"`
	Host       string             `json:"host"`
	URL        string             `json:"url"`
	UserAgent  string             `json:"user_agent"`
	Referer    string             `json:"referer,omitempty"`
	Weight     float64            `json:"weight"`
	Generation string             `json:"generation,omitempty"`
	Checkpoint string             `json:"checkpoint,omitempty"`
	Target     string             `json:"target,omitempty"`
	Source     string             `json:"source,omitempty"`
	ID         string             `json:"id"`
	CWV        map[string]float64 `json:"cwv,omitempty"`
}

// NewEvent builds the event for a beacon received with r. The page URL is
// the beacon's referer, then the request's Referer header, then the request
// URL itself.
func NewEvent(b Beacon, r *http.Request, p *privacy.Pipeline, host string, now time.Time) (Event, privacy.Counts) {
	counts := make(privacy.Counts)
	clean := func(s string) string {
		out, c := p.CleanURLAndCount(s)
		counts.Add(c)
		return out
	}

	page := b.Referer
	if page == "" {
		page = r.Referer()
	}
	if page == "" {
		page = requestURL(r)
	}

	if host == "" {
		host = hostOnly(r.Host)
	}

	ev := Event{
		Time:       MaskTime(now, b.TimePadding),
		Host:       host,
		URL:        clean(page),
		UserAgent:  MaskUserAgent(r.UserAgent()),
		Referer:    clean(r.Referer()),
		Weight:     b.Weight,
		Generation: b.Generation,
		Checkpoint: b.Checkpoint,
		Target:     clean(b.Target),
		Source:     clean(b.Source),
		ID:         b.ID,
	}
	if len(b.CWV) > 0 {
		ev.CWV = b.CWV
	}
	return ev, counts
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
