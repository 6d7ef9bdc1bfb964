package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// timestampLayout renders store-native times the way the store console does.
const timestampLayout = "January 2, 2006 at 3:04:05 PM MST"

// Normalizer converts raw store records into Reports. It never fails: every
// missing or malformed field resolves to a documented default.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer returns a Normalizer using the wall clock for missing dateTime values.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock returns a Normalizer that reads the current instant from now.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// NormalizeAll normalizes every record, preserving order.
func (n *Normalizer) NormalizeAll(recs []RawRecord) []Report {
	out := make([]Report, 0, len(recs))
	for _, rec := range recs {
		out = append(out, n.Normalize(rec))
	}
	return out
}

// Normalize produces exactly one Report from rec.
func (n *Normalizer) Normalize(rec RawRecord) Report {
	f := rec.Fields

	r := Report{
		ID:              rec.ID,
		Address:         stringOr(f[FieldAddress], UnknownLocation),
		Description:     stringOr(f[FieldDescription], NoDescription),
		Latitude:        parseCoord(f[FieldLatitude]),
		Longitude:       parseCoord(f[FieldLongitude]),
		ImageData:       stringOr(f[FieldImage], ""),
		TimestampString: resolveTimestamp(f),
	}

	r.DateTime = stringOr(f[FieldDateTime], "")
	if r.DateTime == "" {
		r.DateTime = n.now().UTC().Format(time.RFC3339)
	}

	if r.ImageData == ImagePending {
		r.ImageData = ""
	}

	return r
}

// stringOr renders v as a string, or returns def when v is absent or empty.
func stringOr(v any, def string) string {
	switch t := v.(type) {
	case nil:
		return def
	case string:
		if t == "" {
			return def
		}
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return def
		}
		return t.UTC().Format(time.RFC3339)
	default:
		s := fmt.Sprint(t)
		if s == "" {
			return def
		}
		return s
	}
}

// parseCoord reads a coordinate, substituting 0 for anything unparsable.
func parseCoord(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = p
	case fmt.Stringer:
		p, err := strconv.ParseFloat(strings.TrimSpace(t.String()), 64)
		if err != nil {
			return 0
		}
		f = p
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

var months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// resolveTimestamp picks the display timestamp by first match:
// native time value, string timestamp, month-named key, any "timestamp*" key.
func resolveTimestamp(f map[string]any) string {
	switch t := f[FieldTimestamp].(type) {
	case time.Time:
		return t.UTC().Format(timestampLayout)
	case *time.Time:
		if t != nil {
			return t.UTC().Format(timestampLayout)
		}
	case map[string]any:
		if ts, ok := epochTime(t); ok {
			return ts.UTC().Format(timestampLayout)
		}
	case string:
		if t != "" {
			return t
		}
	}

	for _, m := range months {
		if v, ok := f[m]; ok && v != nil {
			return m + " " + renderValue(v)
		}
	}

	// map order is random; sort so the same record always resolves the same way
	keys := make([]string, 0, len(f))
	for k := range f {
		if strings.HasPrefix(k, FieldTimestamp) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s := renderValue(f[k]); s != "" {
			return s
		}
	}

	return UnknownTime
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(timestampLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(timestampLayout)
	case map[string]any:
		if ts, ok := epochTime(t); ok {
			return ts.UTC().Format(timestampLayout)
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}

// epochTime decodes an exported timestamp object ({"seconds":..,"nanoseconds":..},
// with or without the leading underscore).
func epochTime(m map[string]any) (time.Time, bool) {
	secs, ok := m["seconds"]
	if !ok {
		secs, ok = m["_seconds"]
	}
	if !ok {
		return time.Time{}, false
	}
	s, ok := secs.(float64)
	if !ok {
		return time.Time{}, false
	}
	var ns float64
	if v, ok := m["nanoseconds"].(float64); ok {
		ns = v
	} else if v, ok := m["_nanoseconds"].(float64); ok {
		ns = v
	}
	return time.Unix(int64(s), int64(ns)), true
}
