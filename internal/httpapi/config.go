package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Default remains 1 MiB.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// promptTimeout bounds a single prompt request. Zero means no additional
// timeout beyond server/connection timeouts.
var promptTimeout time.Duration

// SetPromptTimeout sets the prompt timeout (0 disables).
func SetPromptTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	promptTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// swaggerEnabled mounts /swagger/* when the binary is built with -tags=swagger.
var swaggerEnabled bool

// SetSwaggerEnabled toggles the API docs route.
func SetSwaggerEnabled(on bool) { swaggerEnabled = on }
