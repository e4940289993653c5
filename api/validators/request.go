package validators

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

var ErrMissingToken = errors.New("missing bearer token")

// IntRange bounds a numeric query parameter.
type IntRange struct {
	Default int
	Min     int
	Max     int
}

// ParseQueryInt reads key from the query string. A missing value yields
// bounds.Default; anything non-numeric or outside [Min, Max] is a validation error.
func ParseQueryInt(r *http.Request, key string, bounds IntRange) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return bounds.Default, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < bounds.Min || value > bounds.Max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
			WithDetails(map[string]string{key: "must be an integer between " + strconv.Itoa(bounds.Min) + " and " + strconv.Itoa(bounds.Max)})
	}
	return value, nil
}

// QueryIntOrZero is the lenient variant for endpoints that clamp on their own.
func QueryIntOrZero(r *http.Request, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return value
}

// CleanText trims free text typed by an operator, drops control characters
// other than newlines and tabs, and cuts it to maxRunes.
func CleanText(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		cleaned = string([]rune(cleaned)[:maxRunes])
	}
	return strings.TrimSpace(cleaned)
}

// BearerToken extracts the credential from an Authorization header. A header
// without the scheme is taken as the bare token.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	scheme, rest, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		header = strings.TrimSpace(rest)
	} else if strings.EqualFold(header, "bearer") {
		header = ""
	}
	if header == "" {
		return "", ErrMissingToken
	}
	return header, nil
}
