package middleware

import (
	"crypto/ed25519"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jonny/interactiond/internal/adapter/inbound/webhook/signature"
	"github.com/jonny/interactiond/pkg/apierror"
)

var ErrMissingSignatureHeaders = errors.New("missing signature headers")

// RequireSignatureHeaders rejects requests missing either signature header.
func RequireSignatureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(signature.HeaderSignature) == "" || r.Header.Get(signature.HeaderTimestamp) == "" {
			apierror.Write(w, apierror.Wrap(http.StatusBadRequest, "Bad signature data", ErrMissingSignatureHeaders))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// VerifySignature authenticates the buffered body against key. The failure
// sub-case is logged at debug and never disclosed to the caller.
func VerifySignature(key ed25519.PublicKey, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, ok := RawBody(r.Context())
			if !ok {
				apierror.Write(w, apierror.Internal("Request body not available"))
				return
			}

			err := signature.Verify(key,
				r.Header.Get(signature.HeaderSignature),
				r.Header.Get(signature.HeaderTimestamp),
				body,
			)
			if err != nil {
				logger.Debug("rejected request signature", "error", err, "remote", remoteIP(r, false))
				apierror.Write(w, apierror.Wrap(http.StatusUnauthorized, "Invalid request signature", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
