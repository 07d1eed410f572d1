package middleware

import (
	"github.com/go-chi/cors"
)

// CORS returns cors.Options for the chat API. The surface only uses GET,
// POST and DELETE. If "*" is among the origins, AllowCredentials is forced
// off because browsers reject credentialed wildcard responses.
func CORS(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	allowCreds := true
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}
