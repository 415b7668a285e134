// Package embed serves the script-loader surface host pages use to mount
// the widget: a tiny loader script that injects the real bundle with the
// organization slug, plus a minimal standalone embed page.
package embed

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/innovar-labs/wavebox-widget/pkg/logging"
)

// loaderJS finds its own script tag, lifts the data-slug attribute and
// injects the widget bundle carrying it. Host pages embed exactly one line:
//
//	<script src="https://widgets.example/widget.js" data-slug="acme" async></script>
const loaderJS = `(function () {
  var current = document.currentScript;
  if (!current) {
    var scripts = document.getElementsByTagName('script');
    current = scripts[scripts.length - 1];
  }
  var slug = current && current.getAttribute('data-slug');
  if (!slug) {
    console.warn('wavebox: missing data-slug attribute, widget not loaded');
    return;
  }
  var bundle = document.createElement('script');
  bundle.src = %s;
  bundle.async = true;
  bundle.setAttribute('data-slug', slug);
  document.head.appendChild(bundle);
})();
`

var embedPage = template.Must(template.New("embed").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Chat</title>
</head>
<body>
  <script src="/widget.js" data-slug="{{.Slug}}" async></script>
</body>
</html>
`))

// Handler serves the loader script and embed page.
type Handler struct {
	bundleURL   string
	defaultSlug string
	logger      *logging.Logger
}

// NewHandler builds an embed handler. bundleURL is where the compiled widget
// bundle is hosted; defaultSlug is used when an embed-page request carries no
// ?slug= parameter.
func NewHandler(bundleURL, defaultSlug string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		bundleURL:   bundleURL,
		defaultSlug: defaultSlug,
		logger:      logger.Component("embed"),
	}
}

// HandleWidgetJS serves the loader script. It is fetched cross-origin from
// arbitrary host pages, so it always allows any origin.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	src, err := json.Marshal(h.bundleURL)
	if err != nil {
		http.Error(w, "loader unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	fmt.Fprintf(w, loaderJS, src)
}

// HandleEmbedPage serves a minimal standalone page hosting the widget,
// propagating ?slug= into the loader's data-slug attribute.
func (h *Handler) HandleEmbedPage(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		slug = h.defaultSlug
	}
	if slug == "" {
		http.Error(w, "slug is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := embedPage.Execute(w, struct{ Slug string }{Slug: slug}); err != nil {
		h.logger.Error("failed to render embed page", "error", err)
	}
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
