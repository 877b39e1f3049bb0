package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// Security returns a middleware that applies security headers to all
// responses. HSTS and the HTTPS redirect only apply outside development,
// where the service sits behind a TLS-terminating proxy.
func Security(isDevelopment bool) func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=()",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		SSLRedirect:           !isDevelopment,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         isDevelopment,
	})

	return secureMiddleware.Handler
}
