package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body,
// optionally prefixed with "sha256=".
const SignatureHeader = "X-Specnotify-Signature"

// RequireSignature returns middleware that rejects requests whose body
// signature does not match secret.
func RequireSignature(secret, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sig := r.Header.Get(header)
			if sig == "" {
				writeError(w, http.StatusUnauthorized, "missing signature")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !verifySignature(body, sig, secret) {
				writeError(w, http.StatusForbidden, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Sign returns the header value RequireSignature accepts for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(payload []byte, signature, secret string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
