package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
)

// triggerAuth protects the internal trigger endpoint. The caller must
// present the app key and an HMAC-SHA256 signature of the raw request
// body computed with the app secret, which proves it holds server-side
// credentials. End-user clients never have those.
func (s *Server) triggerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Gateway-Key") != s.appKey {
			s.log.Warn("Trigger call with wrong app key")
			writeError(w, http.StatusUnauthorized, "invalid app key")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		mac := hmac.New(sha256.New, s.appSecret)
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		presented := r.Header.Get("X-Gateway-Signature")
		if !hmac.Equal([]byte(expected), []byte(presented)) {
			s.log.Warn("Trigger call with invalid body signature")
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		next.ServeHTTP(w, r)
	})
}
