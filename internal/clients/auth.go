package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

type AuthClient struct {
	base string
	http *http.Client
}

func NewAuthClient(base string, timeout time.Duration) *AuthClient {
	return &AuthClient{base: base, http: &http.Client{Timeout: timeout}}
}

// Validate asks the user service whether the bearer token is good and returns
// the user id it belongs to.
func (c *AuthClient) Validate(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/users/validate", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("validate token: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrInvalidToken
	}

	var body struct {
		Valid  bool   `json:"valid"`
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("validate token: decode: %w", ErrUnavailable)
	}
	if !body.Valid || body.UserID == "" {
		return "", ErrInvalidToken
	}
	return body.UserID, nil
}
