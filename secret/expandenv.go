package secret

import (
	"errors"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
)

// ErrMissingEnv is matched by every *MissingEnvError.
var ErrMissingEnv = errors.New("secret: missing required environment variables")

// MissingEnvError lists the braced references that are not set.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return ErrMissingEnv.Error() + ": " + strings.Join(e.Names, ", ")
}

func (e *MissingEnvError) Unwrap() error { return ErrMissingEnv }

var bracedRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

const dollarPlaceholder = "\x00paramsolve-dollar\x00"

// ExpandEnvStrict expands environment variables in s.
//
//   - `$VAR` and `${VAR}` expand as with os.ExpandEnv.
//   - `${VAR}` with VAR unset is a *MissingEnvError; a bare `$VAR` expands
//     to the empty string.
//   - `$$` is a literal `$`.
func ExpandEnvStrict(s string) (string, error) {
	s = strings.ReplaceAll(s, "$$", dollarPlaceholder)

	missing := make(map[string]struct{})
	for _, m := range bracedRef.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok {
			missing[m[1]] = struct{}{}
		}
	}
	if len(missing) > 0 {
		return "", &MissingEnvError{Names: slices.Sorted(maps.Keys(missing))}
	}

	return strings.ReplaceAll(os.ExpandEnv(s), dollarPlaceholder, "$"), nil
}
