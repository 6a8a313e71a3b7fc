package jwttai

import (
	"net/http"

	"github.com/cicsdev/go-jwt-tai/core"
)

// httpRequest adapts *http.Request to core.Request.
type httpRequest struct {
	r       *http.Request
	proxies *TrustedProxyConfig
}

// NewRequest adapts r for the core. Transport security comes from r.TLS,
// or from forwarded headers when proxies trusts them.
func NewRequest(r *http.Request, proxies *TrustedProxyConfig) core.Request {
	return &httpRequest{r: r, proxies: proxies}
}

func (h *httpRequest) IsSecure() bool {
	return isSecure(h.r, h.proxies)
}

func (h *httpRequest) Header(name string) string {
	return h.r.Header.Get(name)
}
