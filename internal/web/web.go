// Package web serves the editor page: one window per page load.
package web

import (
	"crypto/subtle"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/api"
)

//go:embed assets/index.html
var indexHTML string

//go:embed assets/app.js assets/style.css
var staticFS embed.FS

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

// WindowIssuer hands out window ids the bridge will accept.
type WindowIssuer interface {
	Issue() string
}

type pageData struct {
	AppName  string
	WindowID string
}

// Pages serves the editor page and its static assets.
type Pages struct {
	appName     string
	authEnabled bool
	token       string
	stylesheet  http.Handler
	windows     WindowIssuer
	logger      *slog.Logger
}

// Option configures Pages.
type Option func(*Pages)

// WithAuth requires token on page loads. A valid ?token= query parameter is
// exchanged for the api.TokenCookie cookie.
func WithAuth(token string) Option {
	return func(p *Pages) {
		p.authEnabled = true
		p.token = token
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pages) { p.logger = l }
}

// New creates the page server. stylesheet serves /preview.css and windows
// issues the id of every loaded page.
func New(appName string, stylesheet http.Handler, windows WindowIssuer, opts ...Option) *Pages {
	p := &Pages{
		appName:    appName,
		stylesheet: stylesheet,
		windows:    windows,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mount registers the page routes on r.
func (p *Pages) Mount(r chi.Router) {
	static, err := fs.Sub(staticFS, "assets")
	if err != nil {
		panic(err)
	}
	r.Get("/", p.Index)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Handle("/preview.css", p.stylesheet)
}

// Index renders the editor page with a freshly minted window id.
func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	if p.authEnabled && !p.authorize(w, r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	data := pageData{AppName: p.appName, WindowID: p.windows.Issue()}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
	if err := indexTmpl.Execute(w, data); err != nil {
		p.logger.Error("web: render index", slog.String("error", err.Error()))
	}
}

func (p *Pages) authorize(w http.ResponseWriter, r *http.Request) bool {
	if api.ValidToken(r, p.token) {
		return true
	}
	q := r.URL.Query().Get("token")
	if q == "" || subtle.ConstantTimeCompare([]byte(q), []byte(p.token)) != 1 {
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     api.TokenCookie,
		Value:    p.token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return true
}
