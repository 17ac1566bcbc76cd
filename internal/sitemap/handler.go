package sitemap

import (
	"log/slog"
	"net/http"
)

// Handler serves a generated sitemap over HTTP.
// The document is regenerated for every request.
type Handler struct {
	providers []Provider
	domain    string
	logger    *slog.Logger
}

// NewHandler creates a Handler. An empty domain uses the Host header of
// each request.
func NewHandler(domain string, logger *slog.Logger, providers ...Provider) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{providers: providers, domain: domain, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	req := Request{Scheme: "http", Host: r.Host}
	if r.TLS != nil {
		req.Scheme = "https"
	}
	domain := h.domain
	if domain == "" {
		domain = r.Host
	}

	body, err := Generate(r.Context(), req, domain, h.providers...)
	if err != nil {
		h.logger.Error("failed to generate sitemap", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("failed to write sitemap", "error", err)
	}
}
