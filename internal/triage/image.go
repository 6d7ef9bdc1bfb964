package triage

import "strings"

// DefaultImageMediaType is assumed when the payload does not describe itself.
const DefaultImageMediaType = "image/jpeg"

// minImageDataLen is the shortest image value worth sending to the auditor.
// Anything shorter is a placeholder or a truncated upload.
const minImageDataLen = 100

// ParseImageData splits an image value into media type and base64 payload.
// It accepts a data URL (data:<type>;base64,<payload>), a bare "base64,"
// marker, or the raw payload.
func ParseImageData(s string) (mediaType, payload string) {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		if meta, data, found := strings.Cut(rest, ","); found {
			mt, _, _ := strings.Cut(meta, ";")
			if mt == "" {
				mt = DefaultImageMediaType
			}
			return mt, data
		}
	}
	if _, data, found := strings.Cut(s, "base64,"); found {
		return DefaultImageMediaType, data
	}
	return DefaultImageMediaType, s
}
