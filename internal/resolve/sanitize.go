package resolve

import (
	"strings"

	"clipvault/internal/platform/extract"
)

const genericExtractionMsg = "This site is limiting downloads right now. Try again later."

// extra keywords that must never leak into a client-facing message alongside
// the platform table names
var leakKeywords = []string{"yt-dlp", "ytdlp"}

// Sanitize rewrites any user-facing message that mentions a known platform or
// the extraction tool into a generic retry-later message. Raw diagnostics stay
// in the logs; the service boundary is platform-agnostic by contract.
func Sanitize(msg string) string {
	lower := strings.ToLower(msg)
	for _, name := range extract.PlatformNames() {
		if strings.Contains(lower, name) {
			return genericExtractionMsg
		}
	}
	for _, kw := range leakKeywords {
		if strings.Contains(lower, kw) {
			return genericExtractionMsg
		}
	}
	return msg
}
