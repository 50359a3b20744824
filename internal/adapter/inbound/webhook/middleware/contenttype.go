package middleware

import (
	"errors"
	"mime"
	"net/http"

	"github.com/jonny/interactiond/pkg/apierror"
)

var ErrBadContentType = errors.New("bad content type")

// RequireJSON rejects requests whose Content-Type is not application/json.
// Media type parameters such as charset are accepted.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isJSON(r.Header.Get("Content-Type")) {
			apierror.Write(w, apierror.Wrap(http.StatusBadRequest, "Bad Content-Type", ErrBadContentType))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(header string) bool {
	if header == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(header)
	return err == nil && mediaType == "application/json"
}
