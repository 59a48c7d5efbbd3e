// Package middleware contains HTTP middlewares used by the web server.
package middleware

import (
	"fmt"
	"net/http"
)

// Middleware is a function that wraps an http.Handler to provide additional
// functionality such as logging or authentication.
type Middleware func(http.Handler) http.Handler

// Chain wraps the last item, which must be an http.Handler, with the preceding
// middlewares. The first middleware is the outermost, so execution flows from
// left to right.
func Chain(items ...any) http.Handler {
	if len(items) == 0 {
		panic("Chain requires at least a handler")
	}

	h, ok := items[len(items)-1].(http.Handler)
	if !ok {
		panic(fmt.Sprintf("the last item passed to Chain must be an http.Handler, got %T", items[len(items)-1]))
	}

	for i := len(items) - 2; i >= 0; i-- {
		mw, ok := items[i].(Middleware)
		if !ok {
			panic(fmt.Sprintf("item %d passed to Chain is not a Middleware, got %T", i, items[i]))
		}
		h = mw(h)
	}

	return h
}
