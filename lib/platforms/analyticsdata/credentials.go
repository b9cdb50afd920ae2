package analyticsdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const ReadonlyScope = "https://www.googleapis.com/auth/analytics.readonly"

// ErrCredentials is wrapped by errors obtaining an access token, they are
// not fixed by retrying the request.
var ErrCredentials = errors.New("credentials")

// ParseCredentials turns a credential document into a token source.
//
// Google credential files (service account keys, authorized user files)
// are exchanged for short lived tokens with the readonly scope. Anything
// else is treated as an already issued token, see ParseToken.
func ParseCredentials(ctx context.Context, contents []byte) (oauth2.TokenSource, error) {
	trimmed := strings.TrimSpace(string(contents))
	if strings.HasPrefix(trimmed, "{") {
		var file struct {
			Type string `json:"type"`
		}
		err := json.Unmarshal([]byte(trimmed), &file)
		if err != nil {
			return nil, fmt.Errorf("json unmarshal: %w", err)
		}
		if file.Type != "" {
			creds, err := google.CredentialsFromJSON(ctx, []byte(trimmed), ReadonlyScope)
			if err != nil {
				return nil, fmt.Errorf("%s credentials: %w", file.Type, err)
			}
			return creds.TokenSource, nil
		}
	}

	token, err := ParseToken(contents)
	if err != nil {
		return nil, err
	}
	return token.TokenSource(), nil
}

// LoadCredentials reads a credential file from disk, see ParseCredentials.
func LoadCredentials(ctx context.Context, path string) (oauth2.TokenSource, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	source, err := ParseCredentials(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return source, nil
}
