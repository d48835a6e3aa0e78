package democonvert

import (
	"net/http"
	"strings"
)

// CanonicalHostMiddleware redireciona (301) requisições do host "from" para
// "to", preservando path e query. Ex: fileslap.com -> www.fileslap.com.
func CanonicalHostMiddleware(from, to string) func(next http.Handler) http.Handler {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.TrimSpace(to)
	if from == "" || to == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.ToLower(r.Host) != from {
				next.ServeHTTP(w, r)
				return
			}
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
				scheme = p
			}
			http.Redirect(w, r, scheme+"://"+to+r.URL.RequestURI(), http.StatusMovedPermanently)
		})
	}
}
