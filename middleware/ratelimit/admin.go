package ratelimit

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"eventhour-gateway/middleware/ratelimit/domain"
	"eventhour-gateway/pkg/logger"

	"github.com/go-chi/chi/v5"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminAuthorized compara X-Admin-Token com token em tempo constante.
// Token vazio nunca autoriza.
func AdminAuthorized(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	got := r.Header.Get(AdminTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// ResetHandler atende POST /{policy}/reset?key=<identificador> (rota chi) e
// zera a janela daquela chave. Sem token configurado o handler responde 404,
// ou seja, o override administrativo fica desligado.
func ResetHandler(windows map[string]domain.WindowLimiter, token string, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			http.NotFound(w, r)
			return
		}
		if !AdminAuthorized(r, token) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		policy := chi.URLParam(r, "policy")
		win, ok := windows[policy]
		if !ok {
			http.Error(w, "unknown policy", http.StatusNotFound)
			return
		}
		key := strings.TrimSpace(r.URL.Query().Get("key"))
		if key == "" {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}

		ctx := log.WithFields(r.Context(), map[string]any{"policy": policy, "key": key})
		if err := win.Reset(ctx, domain.Key(key)); err != nil {
			log.Error(ctx, "ratelimit.admin_reset.failed", err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		log.Info(ctx, "ratelimit.admin_reset")
		w.WriteHeader(http.StatusNoContent)
	})
}
