package analyticsdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
)

// Token is an OAuth access token as written by `gcloud auth print-access-token`
// (bare string) or by a token endpoint (json document).
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenSource never refreshes, the token is used until the service rejects it.
func (t Token) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
	})
}

// ParseToken accepts either a json token document or a bare token string.
func ParseToken(contents []byte) (Token, error) {
	trimmed := strings.TrimSpace(string(contents))
	if trimmed == "" {
		return Token{}, errors.New("empty token")
	}

	if strings.HasPrefix(trimmed, "{") {
		var token Token
		err := json.Unmarshal([]byte(trimmed), &token)
		if err != nil {
			return Token{}, fmt.Errorf("json unmarshal: %w", err)
		}
		if token.AccessToken == "" {
			return Token{}, errors.New("token document has no access_token")
		}
		return token, nil
	}

	return Token{AccessToken: trimmed, TokenType: "Bearer"}, nil
}

// LoadToken reads a credential file from disk, see ParseToken.
func LoadToken(path string) (Token, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Token{}, err
	}
	token, err := ParseToken(contents)
	if err != nil {
		return Token{}, fmt.Errorf("%s: %w", path, err)
	}
	return token, nil
}
