package warden

import (
	"encoding/base64"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/minus-twelve/warden/types"
)

const (
	DefaultCookieName = "_my_session_id"

	basicPrefix = "Basic "
)

var urlSafeAlphabet = strings.NewReplacer("-", "+", "_", "/")

// AuthorizationHeader returns the Authorization header of r. A header that
// is set but empty is still reported as present.
func AuthorizationHeader(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	values, ok := r.Header[http.CanonicalHeaderKey("Authorization")]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// SessionCookie returns the value of the session cookie called name.
func SessionCookie(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	if name == "" {
		name = DefaultCookieName
	}
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

func ExtractBase64AuthorizationHeader(header string) (string, bool) {
	if !strings.HasPrefix(header, basicPrefix) {
		return "", false
	}
	return header[len(basicPrefix):], true
}

// DecodeBase64AuthorizationHeader decodes standard base64, also accepting
// the URL-safe alphabet and missing padding. Output that is not valid UTF-8
// is rejected.
func DecodeBase64AuthorizationHeader(encoded string) (string, bool) {
	normalized := urlSafeAlphabet.Replace(encoded)

	raw, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(normalized, "="))
		if err != nil {
			return "", false
		}
	}

	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// ExtractUserCredentials splits "identifier:secret" on the first colon. The
// secret may itself contain colons.
func ExtractUserCredentials(decoded string) (types.Credentials, bool) {
	identifier, secret, ok := strings.Cut(decoded, ":")
	if !ok {
		return types.Credentials{}, false
	}
	return types.Credentials{Identifier: identifier, Secret: secret}, true
}

// BasicCredentials runs the whole Basic scheme pipeline on a header value.
func BasicCredentials(header string) (types.Credentials, bool) {
	encoded, ok := ExtractBase64AuthorizationHeader(header)
	if !ok {
		return types.Credentials{}, false
	}
	decoded, ok := DecodeBase64AuthorizationHeader(encoded)
	if !ok {
		return types.Credentials{}, false
	}
	return ExtractUserCredentials(decoded)
}
