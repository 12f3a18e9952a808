package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/CallsForFriends/signalling-server/internal/config"
)

// RemoteProvider validates tokens against an external identity service:
// POST {"token": "..."} to the configured endpoint, expecting
// 200 {"userId": <int>}. 401/403 mean the token was rejected.
type RemoteProvider struct {
	url    string
	client *http.Client
}

func NewRemoteProvider(cfg config.Config) (*RemoteProvider, error) {
	if cfg.AuthProviderURL == "" {
		return nil, fmt.Errorf("auth provider url must not be empty")
	}

	dialer := &net.Dialer{Timeout: cfg.AuthProviderConnectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: cfg.AuthProviderReadTimeout,
	}

	return &RemoteProvider{
		url: cfg.AuthProviderURL,
		client: &http.Client{
			Transport: transport,
			// Hard cap on the whole exchange so a stalled identity service
			// cannot wedge connection setup.
			Timeout: cfg.AuthProviderConnectTimeout + 2*cfg.AuthProviderReadTimeout,
		},
	}, nil
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	UserID int64 `json:"userId"`
}

func (p *RemoteProvider) ValidateToken(ctx context.Context, token string) (Identity, error) {
	body, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return Identity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity service request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrInvalidToken
	default:
		return Identity{}, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var out validateResponse
	dec := json.NewDecoder(http.MaxBytesReader(nil, resp.Body, 4096))
	if err := dec.Decode(&out); err != nil {
		return Identity{}, fmt.Errorf("identity service returned malformed body: %w", err)
	}
	if out.UserID <= 0 {
		return Identity{}, fmt.Errorf("identity service returned invalid user id %d", out.UserID)
	}
	return Identity{UserID: out.UserID}, nil
}

var _ Provider = (*RemoteProvider)(nil)
