package api

import (
	"log"
	"net/http"
)

// CORSMiddleware allows the SPA to call the gateway from another origin,
// matching the open CORS policy of the tracked-device deployment.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[%s] %s - Host: %s", r.Method, r.URL.RequestURI(), r.Host)
		next.ServeHTTP(w, r)
	})
}
