package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

var securityHeaders = map[string]string{
	fiber.HeaderXContentTypeOptions:     "nosniff",
	fiber.HeaderXFrameOptions:           "DENY",
	fiber.HeaderXXSSProtection:          "1; mode=block",
	fiber.HeaderStrictTransportSecurity: "max-age=31536000; includeSubDomains",
	fiber.HeaderReferrerPolicy:          "strict-origin-when-cross-origin",
	fiber.HeaderPermissionsPolicy:       "geolocation=(), microphone=(), camera=()",
	fiber.HeaderContentSecurityPolicy:   "default-src 'none'; frame-ancestors 'none'",
	fiber.HeaderCacheControl:            "no-store",
}

// uiPolicy lets the bundled documentation page load its own scripts and styles
const uiPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'none'"

// SecurityHeaders sets the hardening headers on every response. Responses
// describe workspace files, so none of them may be cached. Paths under one of
// uiPrefixes serve HTML and get a content policy that allows same-origin assets.
func SecurityHeaders(uiPrefixes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for k, v := range securityHeaders {
			c.Set(k, v)
		}
		for _, prefix := range uiPrefixes {
			if strings.HasPrefix(c.Path(), prefix) {
				c.Set(fiber.HeaderContentSecurityPolicy, uiPolicy)
				break
			}
		}
		return c.Next()
	}
}
