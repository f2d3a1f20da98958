// Package router wires the HTTP surface: POST /analyze, GET /download,
// GET /health. Error bodies are always {"error": msg} with client-safe
// messages; diagnostics go to the log.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clipvault/internal/platform/ratelimit"
	"clipvault/internal/resolve"

	"github.com/Data-Corruption/stdx/xhttp"
	"github.com/Data-Corruption/stdx/xlog"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// Deps carries everything the handlers need. OpenStream is a function so
// tests can substitute a fake subprocess.
type Deps struct {
	Log        *xlog.Logger
	Resolver   *resolve.Service
	Limiter    *ratelimit.Limiter
	OpenStream StreamOpener

	// BaseURL overrides the externally-visible base URL used in proxy links.
	// Empty means derive it from the inbound request.
	BaseURL string

	// Spawn guards streaming subprocess creation against bursts.
	Spawn *rate.Limiter
}

type analyzeBody struct {
	URL string `json:"url"`
}

func New(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// inject logger into request context for xlog calls downstream
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(xlog.IntoContext(r.Context(), d.Log)))
		})
	})
	r.Use(securityHeaders)

	r.Post("/analyze", d.handleAnalyze)
	r.Get("/download", d.handleDownload)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func (d Deps) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var body analyzeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondErr(r.Context(), w, &xhttp.Err{Code: 400, Msg: "URL is required", Err: err})
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		respondErr(r.Context(), w, &xhttp.Err{Code: 400, Msg: "URL is required", Err: fmt.Errorf("empty url in analyze body")})
		return
	}

	if !d.Limiter.Admit(ratelimit.ClientID(r)) {
		respondErr(r.Context(), w, &xhttp.Err{
			Code: 429,
			Msg:  "Too many requests. Try again in a minute.",
			Err:  fmt.Errorf("rate limited client %s", ratelimit.ClientID(r)),
		})
		return
	}

	res, err := d.Resolver.Analyze(r.Context(), body.URL, d.baseURL(r))
	if err != nil {
		respondErr(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// baseURL returns the externally-visible base URL for proxy links: the
// configured override when set, else derived from the inbound request.
func (d Deps) baseURL(r *http.Request) string {
	if d.BaseURL != "" {
		return strings.TrimRight(d.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = "localhost:3000"
	}
	return scheme + "://" + host
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// respondErr writes a {"error": msg} body. *xhttp.Err carries the client-safe
// code and message; anything else collapses to a generic 500. The wrapped
// error is log-only.
func respondErr(ctx context.Context, w http.ResponseWriter, err error) {
	var xe *xhttp.Err
	if errors.As(err, &xe) {
		if xe.Err != nil {
			xlog.Errorf(ctx, "request failed (%d): %v", xe.Code, xe.Err)
		}
		respondJSON(w, xe.Code, map[string]string{"error": xe.Msg})
		return
	}
	xlog.Errorf(ctx, "request failed: %v", err)
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
