package handler

import "net/http"

// getRequestId returns the value of the X-Request-ID header, if available,
// truncated to fit a UUID.
func getRequestId(r *http.Request) string {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		return ""
	}
	if len(reqID) > 36 {
		reqID = reqID[:36]
	}
	return reqID
}
