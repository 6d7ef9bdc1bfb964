package report

import "strings"

// Defaults applied by the normalizer when a raw field is missing.
const (
	UnknownLocation = "Unknown Location"
	NoDescription   = "No description provided"
	UnknownTime     = "Unknown Time"

	// ImagePending is what data-entry tooling writes while an upload is still pending.
	ImagePending = "..."
)

// Raw field names as written by the reporting client.
const (
	FieldAddress     = "address"
	FieldDateTime    = "dateTime"
	FieldDescription = "description"
	FieldImage       = "imageBase64"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldTimestamp   = "timestamp"
)

// RawRecord is one document as returned by the store: its identifier plus an
// untyped field mapping.
type RawRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Report is a canonical, normalized citizen incident. Values are never mutated
// after normalization.
type Report struct {
	ID              string  `json:"id"`
	Address         string  `json:"address"`
	DateTime        string  `json:"dateTime"`
	Description     string  `json:"description"`
	ImageData       string  `json:"imageBase64"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	TimestampString string  `json:"timestampString,omitempty"`
}

// HasLocation reports whether the report carries coordinates. 0,0 is the
// "no location" sentinel.
func (r Report) HasLocation() bool {
	return r.Latitude != 0 || r.Longitude != 0
}

// HasImage reports whether any image payload is attached.
func (r Report) HasImage() bool {
	return strings.TrimSpace(r.ImageData) != ""
}

// TimeLabel returns the best human-readable time for the report: the rendered
// timestamp when one was resolved, otherwise the ISO dateTime.
func (r Report) TimeLabel() string {
	if r.TimestampString != "" && r.TimestampString != UnknownTime {
		return r.TimestampString
	}
	if r.DateTime != "" {
		return r.DateTime
	}
	return UnknownTime
}
