//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvToken names the environment variable holding the caller's token.
const EnvToken = "SOS_TOKEN"

// errNoToken is returned when no source yields a token.
var errNoToken = errors.New("no token: pass --token, --token-file or set " + EnvToken)

// LoadToken finds the caller's bearer token: the explicit value first, then
// the file at path, then the environment.
func LoadToken(value, path string) (string, error) {
	if token := strings.TrimSpace(value); token != "" {
		return token, nil
	}

	if path != "" {
		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}

		if token := strings.TrimSpace(string(contents)); token != "" {
			return token, nil
		}
	}

	if token := strings.TrimSpace(os.Getenv(EnvToken)); token != "" {
		return token, nil
	}

	return "", errNoToken
}
