package abode

import (
	"net/url"
	"strings"
)

// sessionCookieName is the cookie carrying the session value.
const sessionCookieName = "SESSION"

// parseCookies builds a case-sensitive map from one or more Set-Cookie values.
// The values are joined with ";", split into segments and each segment split
// on its first "=". Keys and values are trimmed and URL-decoded. The last
// occurrence of a duplicate key wins.
func parseCookies(headers []string) map[string]string {
	out := make(map[string]string)
	joined := strings.Join(headers, ";")
	if joined == "" {
		return out
	}

	for _, segment := range strings.Split(joined, ";") {
		key, value, _ := strings.Cut(segment, "=")
		key = decodeCookiePart(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		out[key] = decodeCookiePart(strings.TrimSpace(value))
	}
	return out
}

// decodeCookiePart URL-decodes s, returning it unchanged if it is not valid
// percent-encoding.
func decodeCookiePart(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
