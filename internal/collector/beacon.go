// Package collector receives RUM beacons over HTTP, strips anything that
// could identify a visitor, and hands the resulting events to sinks.
package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxBodySize caps the size of a POSTed beacon.
const MaxBodySize = 64 * 1024

// Metrics is the set of Core Web Vitals kept from a beacon's cwv object.
var Metrics = []string{"LCP", "INP", "CLS", "TTFB"}

// Beacon is a decoded and validated browser event.
type Beacon struct {
	ID          string
	Weight      float64
	CWV         map[string]float64
	Referer     string
	Generation  string
	Checkpoint  string
	Target      string
	Source      string
	TimePadding *float64 // milliseconds past the hour, nil when absent
}

// RequestError is a client error carrying the HTTP status to answer with.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func badRequest(format string, args ...interface{}) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// DecodeBeacon reads a beacon from a POST body or the data query parameter
// of a GET request. GET beacons without an id get a random one.
func DecodeBeacon(r *http.Request) (Beacon, error) {
	var raw io.Reader
	switch r.Method {
	case http.MethodGet:
		raw = strings.NewReader(r.URL.Query().Get("data"))
	case http.MethodPost:
		raw = http.MaxBytesReader(nil, r.Body, MaxBodySize)
	default:
		return Beacon{}, &RequestError{
			Status:  http.StatusMethodNotAllowed,
			Message: fmt.Sprintf("method %s not allowed", r.Method),
		}
	}

	var body map[string]interface{}
	if err := json.NewDecoder(raw).Decode(&body); err != nil || body == nil {
		if err == nil {
			err = fmt.Errorf("body is not an object")
		}
		return Beacon{}, badRequest("RUM Collector expects POST body as JSON, got %s: %v", r.Method, err)
	}

	return parseBeacon(body, r.Method == http.MethodGet)
}

func parseBeacon(body map[string]interface{}, generateID bool) (Beacon, error) {
	b := Beacon{
		Weight: 1,
		CWV:    map[string]float64{},
	}

	id, ok := body["id"]
	switch {
	case !ok && generateID:
		b.ID = uuid.NewString()
	case !ok:
		return Beacon{}, badRequest("id field is required")
	default:
		s, valid := idString(id)
		if !valid {
			return Beacon{}, badRequest("id field is required")
		}
		b.ID = s
	}

	if w, ok := body["weight"]; ok {
		n, isNum := w.(float64)
		if !isNum || n == 0 {
			return Beacon{}, badRequest("weight must be a number")
		}
		b.Weight = n
	}

	if c, ok := body["cwv"]; ok {
		obj, isObj := c.(map[string]interface{})
		if !isObj {
			return Beacon{}, badRequest("cwv must be an object")
		}
		for _, m := range Metrics {
			if v, ok := obj[m].(float64); ok {
				b.CWV[m] = v
			}
		}
	}

	b.Referer = stringValue(body["referer"])
	if b.Referer == "" {
		b.Referer = stringValue(body["referrer"])
	}
	b.Generation = stringValue(body["generation"])
	b.Checkpoint = stringValue(body["checkpoint"])
	b.Target = stringValue(body["target"])
	b.Source = stringValue(body["source"])
	b.TimePadding = padding(body["t"])

	return b, nil
}

// idString accepts strings, including the empty string, and non-zero numbers.
func idString(v interface{}) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		if id == 0 || math.IsNaN(id) {
			return "", false
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	default:
		return "", false
	}
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// padding reads the time padding from a number or a numeric string.
func padding(v interface{}) *float64 {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			n = 0
			break
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		n = f
	default:
		return nil
	}
	if math.IsNaN(n) {
		return nil
	}
	return &n
}
