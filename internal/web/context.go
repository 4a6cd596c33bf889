package web

import (
	"context"
	"net/http"

	"github.com/kafkasder-git/starter-function-sub002/internal/core"
)

// WithRequestMetadata copies the client IP and User-Agent into ctx for run
// logs. RemoteAddr has already been resolved by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, r.RemoteAddr)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
