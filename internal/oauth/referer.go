package oauth

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateReferer checks that raw is an absolute http(s) URL and, when
// allowedOrigins is non-empty, that its origin is listed. The referer is
// where the browser lands after the callback, so an unchecked value is an
// open redirect.
func ValidateReferer(raw string, allowedOrigins []string) error {
	if raw == "" {
		return fmt.Errorf("%w: referer is required", ErrInvalidRequest)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: referer is not a valid URL", ErrInvalidRequest)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: referer must use http or https", ErrInvalidRequest)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: referer must be an absolute URL", ErrInvalidRequest)
	}
	if u.User != nil {
		return fmt.Errorf("%w: referer must not carry credentials", ErrInvalidRequest)
	}

	if len(allowedOrigins) == 0 {
		return nil
	}

	origin := strings.ToLower(u.Scheme + "://" + u.Host)
	for _, allowed := range allowedOrigins {
		if strings.ToLower(strings.TrimRight(allowed, "/")) == origin {
			return nil
		}
	}
	return fmt.Errorf("%w: referer origin %s is not allowed", ErrInvalidRequest, origin)
}
