package main

import (
	"net/http"
	"time"
)

const timeoutBody = `{"error":"request timed out","kind":"timeout"}`

// timeoutHandler responds with a 503 Service Unavailable error when the handler does not meet the deadline.
//
// The oracle calls of the handler are cancelled through the request context when the deadline passes.
func timeoutHandler(h http.Handler, timeout time.Duration) http.Handler {
	return http.TimeoutHandler(h, timeout, timeoutBody)
}
