package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// allowMethods covers the whole surface: every route is a GET, so no
// mutating method is ever allowed cross-origin.
const allowMethods = "GET, OPTIONS"

// CORSConfig limits which cross-origin panels may read the API.
type CORSConfig struct {
	AllowOrigin  string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig allows any origin; the node serves operator panels on
// trusted networks. The header list covers fetch requests and EventSource
// resumption.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:  "*",
		AllowHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
		MaxAge:       86400,
	}
}

// CORS stamps cross-origin headers on responses and answers preflights,
// both from one precomputed header set.
type CORS struct {
	origin  string
	headers string
	maxAge  string
}

// NewCORS precomputes the response headers for a config.
func NewCORS(config CORSConfig) *CORS {
	return &CORS{
		origin:  config.AllowOrigin,
		headers: strings.Join(config.AllowHeaders, ", "),
		maxAge:  strconv.Itoa(config.MaxAge),
	}
}

// Middleware adds the headers to every API response.
func (c *CORS) Middleware(ctx huma.Context, next func(huma.Context)) {
	ctx.SetHeader("Access-Control-Allow-Origin", c.origin)
	ctx.SetHeader("Access-Control-Allow-Methods", allowMethods)
	ctx.SetHeader("Access-Control-Allow-Headers", c.headers)
	ctx.SetHeader("Access-Control-Max-Age", c.maxAge)

	if ctx.Method() == http.MethodOptions {
		ctx.SetStatus(http.StatusNoContent)
		return
	}

	next(ctx)
}

// Register answers preflight OPTIONS on the mux. Huma middleware never
// sees OPTIONS before routing, and the streaming routes bypass Huma
// entirely, so the preflight lives on the mux where it covers both.
func (c *CORS) Register(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", c.origin)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", c.headers)
		h.Set("Access-Control-Max-Age", c.maxAge)
		w.WriteHeader(http.StatusNoContent)
	})
}
