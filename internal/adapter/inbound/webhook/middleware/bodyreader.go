package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/jonny/interactiond/pkg/apierror"
)

// MaxBodyBytes bounds the buffered request body.
const MaxBodyBytes = 1 << 20

// rawBodyKey stores the raw request body in the request context.
type rawBodyKey struct{}

// BodyReader reads and buffers the request body so the exact bytes that were
// signed can be verified and then decoded. The raw bytes are stored in the
// request context and retrieved with RawBody.
func BodyReader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		if err != nil {
			apierror.Write(w, apierror.BadRequest("Bad body: unreadable"))
			return
		}
		_ = r.Body.Close()
		if len(body) > MaxBodyBytes {
			apierror.Write(w, apierror.New(http.StatusRequestEntityTooLarge, "Bad body: too large"))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))

		ctx := context.WithValue(r.Context(), rawBodyKey{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RawBody returns the body buffered by BodyReader.
func RawBody(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(rawBodyKey{}).([]byte)
	return body, ok
}
