package middleware

import (
	"context"
	"net/http"

	"graph-ontology-api/internal/nodeloader"
)

type ctxKey string

const nodeLoaderKey ctxKey = "nodeLoader"

// DataLoaderMiddleware attaches a request-scoped node loader to the
// request context.
func DataLoaderMiddleware(repo nodeloader.NodeFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := nodeloader.NewNodeLoader(repo)
			ctx := context.WithValue(r.Context(), nodeLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NodeLoaderFromContext retrieves the node loader from context
func NodeLoaderFromContext(ctx context.Context) *nodeloader.NodeLoader {
	if l, ok := ctx.Value(nodeLoaderKey).(*nodeloader.NodeLoader); ok {
		return l
	}
	return nil
}
