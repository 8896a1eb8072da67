package middleware

import (
	"io"
	"net/http"
)

// maxDrainBytes bounds how much of an unread body is discarded to keep the
// connection reusable; larger leftovers just close it.
const maxDrainBytes = 256 << 10

// DrainAndCloseRequest discards what the handler left unread of the request
// body and closes it. Upgraded websocket requests are left alone.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil || r.Body == http.NoBody || isWebsocketUpgrade(r) {
				return
			}
			_, _ = io.CopyN(io.Discard, r.Body, maxDrainBytes)
			_ = r.Body.Close()
		})
	}
}
