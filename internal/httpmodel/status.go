package httpmodel

import "net/http"

// StatusText returns the canonical text for an HTTP status code, falling
// back to "unknown" for codes net/http does not recognize (including the
// reserved 0 "never produced a status" sentinel).
func StatusText(code int) string {
	if code == 0 {
		return "unknown"
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "unknown"
}

// StatusBucket classifies a status code into one of the six histogram
// buckets the metrics collector tracks: 1xx, 2xx, 3xx, 4xx, 5xx, other.
func StatusBucket(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}
