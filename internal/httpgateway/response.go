package httpgateway

import "net/http"

// writeResponse sends a short plain-text response, used for every error
// path this gateway produces itself rather than forwarding from a tunnel.
func writeResponse(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
