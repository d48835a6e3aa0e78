package democonvert

import (
	"net/http"
	"strings"

	"demo-gateway/gateway/democonvert/domain"
)

// UnknownClient é a chave usada quando não há X-Forwarded-For.
const UnknownClient domain.Key = "unknown"

type KeyFunc func(r *http.Request) domain.Key

// ForwardedForKey usa o primeiro IP do X-Forwarded-For (cliente original).
// É só um palpite: o header é controlado por quem chama.
func ForwardedForKey(r *http.Request) domain.Key {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return UnknownClient
	}
	first, _, _ := strings.Cut(xff, ",")
	if first = strings.TrimSpace(first); first != "" {
		return domain.Key(first)
	}
	return UnknownClient
}
