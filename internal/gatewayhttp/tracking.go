package gatewayhttp

import "net/http"

// ipHeaders is checked in this order since that's the precedence most
// proxies/load balancers in front of this gateway populate; first
// present non-empty value wins.
var ipHeaders = []string{"x-forwarded-for", "x-real-ip", "forwarded"}

// extractTrackingKey derives the caller identity per the rule's
// tracking_type.
func extractTrackingKey(r *http.Request, trackingType string, customHeader string) (string, error) {
	switch trackingType {
	case "by-ip":
		for _, h := range ipHeaders {
			if v := r.Header.Get(h); v != "" {
				return v, nil
			}
		}
		return "", ErrNoIPFound
	case "by-header":
		v := r.Header.Get(customHeader)
		if v == "" {
			return "", &TrackedKeyNotFoundError{Header: customHeader}
		}
		return v, nil
	default:
		return "", ErrNoIPFound
	}
}
