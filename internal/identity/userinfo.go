package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// UserInfoVerifier treats the bearer token as an OAuth2 access token and
// asks the provider's userinfo endpoint who it belongs to
type UserInfoVerifier struct {
	url    string
	client *http.Client
}

// NewUserInfoVerifier creates a verifier for the given userinfo endpoint.
// client may be nil.
func NewUserInfoVerifier(url string, client *http.Client) *UserInfoVerifier {
	return &UserInfoVerifier{url: url, client: client}
}

// Verify resolves token through the userinfo endpoint
func (v *UserInfoVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if v.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.client)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := client.Do(request)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("failed to fetch user info: status %d", resp.StatusCode)
	}

	var payload struct {
		Sub   string `json:"sub"`
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Identity{}, fmt.Errorf("failed to parse user info: %w", err)
	}

	subject := payload.Sub
	if subject == "" {
		subject = payload.ID
	}
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: user info has no subject", ErrInvalidToken)
	}
	return Identity{Subject: subject, Email: payload.Email, Name: payload.Name}, nil
}
