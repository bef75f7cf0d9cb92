package logging

import (
	"net/url"
	"strings"
)

var secretParams = []string{"key", "token", "secret", "signature", "auth"}

// SanitizeURL strips userinfo and fragments and redacts query values whose names look
// like credentials. Search parameters are kept so request logs stay useful.
func SanitizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme == "" && u.Host == "") {
		return s
	}
	u.User = nil
	u.Fragment = ""
	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isSecretParam(name) {
				q.Set(name, "REDACTED")
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func isSecretParam(name string) bool {
	n := strings.ToLower(name)
	for _, s := range secretParams {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}
