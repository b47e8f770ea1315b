package doci

import (
	"fmt"
	"net/url"
	"strings"
)

// A composite code is "<prefix>/<suffix>", e.g. "10.FRONS/ABC123".
// The prefix names the issuing namespace, the suffix is unique within it.

func ComposeCode(prefix, suffix string) string {
	return prefix + "/" + suffix
}

func SplitCode(code string) (string, string, error) {
	prefix, suffix, found := strings.Cut(code, "/")
	if !found || prefix == "" || suffix == "" {
		return "", "", fmt.Errorf("invalid composite code: %s", code)
	}
	return prefix, suffix, nil
}

// ParseDOCIURI accepts "doci:<prefix>/<suffix>" (possibly percent-escaped)
// as well as a bare composite code.
func ParseDOCIURI(escaped string) (string, string, error) {
	uriString, err := url.QueryUnescape(escaped)
	if err != nil {
		return "", "", fmt.Errorf("invalid uri encoding")
	}

	if rest, found := strings.CutPrefix(uriString, "doci:"); found {
		uriString = rest
	}

	return SplitCode(uriString)
}

func validCodeChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '.' || c == '-' || c == '_'
}

func ValidPrefix(prefix string) bool {
	if len(prefix) == 0 || len(prefix) > 64 {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if !validCodeChar(prefix[i]) {
			return false
		}
	}
	return true
}

func ValidSuffix(suffix string) bool {
	if len(suffix) == 0 || len(suffix) > 128 {
		return false
	}
	for i := 0; i < len(suffix); i++ {
		if !validCodeChar(suffix[i]) {
			return false
		}
	}
	return true
}
