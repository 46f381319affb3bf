// Package auth establishes an authenticated session: CSRF token
// acquisition from the landing page followed by a form login.
package auth

import (
	"fmt"
	"regexp"

	"github.com/mdmirror/mdmirror/internal/hackmd"
)

// The landing page embeds the token as a meta tag. Pattern absence
// indicates a page-format change, not a transient condition.
var tokenPattern = regexp.MustCompile(`"csrf-token" content="(.+?)"`)

// ExtractToken scans a landing page body for the CSRF marker and
// returns the embedded token. The matching strategy is isolated here
// so it can change without touching the login flow.
func ExtractToken(body []byte) (string, error) {
	match := tokenPattern.FindSubmatch(body)
	if match == nil {
		return "", fmt.Errorf("scan landing page: %w", hackmd.ErrTokenNotFound)
	}
	return string(match[1]), nil
}
