package testutil

import (
	"net/http"

	"nftform/pkg/requestcontext"
)

// WithRequestID adds a request ID to the request context, as the RequestID
// middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithClient adds client IP and device label to the request context.
func WithClient(req *http.Request, clientIP, device string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), clientIP, device)
	return req.WithContext(ctx)
}
