package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/smallbiznis/guildgate/internal/config"
)

const (
	defaultAPIBase = "https://discord.com/api"
	identifyScope  = "identify"
)

// Endpoint is Discord's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   defaultAPIBase + "/oauth2/authorize",
	TokenURL:  defaultAPIBase + "/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// User is the subset of /users/@me the login flow needs.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

// DisplayName prefers the global display name over the account handle.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.GlobalName); name != "" {
		return name
	}
	return u.Username
}

// Client encapsulates outbound calls to Discord.
type Client interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (User, error)
}

// HTTPClient is the default Client backed by golang.org/x/oauth2.
type HTTPClient struct {
	oauth      *oauth2.Config
	apiBase    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client from service configuration.
func NewHTTPClient(cfg config.Config) *HTTPClient {
	return NewClient(&oauth2.Config{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURL:  cfg.DiscordRedirectURL,
		Endpoint:     Endpoint,
		Scopes:       []string{identifyScope},
	}, defaultAPIBase, nil)
}

// NewClient allows overriding the endpoints, mainly for tests.
func NewClient(oauthCfg *oauth2.Config, apiBase string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		oauth:      oauthCfg,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the consent page URL carrying state.
func (c *HTTPClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for the user's Discord profile.
func (c *HTTPClient) Exchange(ctx context.Context, code string) (User, error) {
	if strings.TrimSpace(code) == "" {
		return User{}, errors.New("authorization code missing")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return User{}, fmt.Errorf("token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/users/@me", nil)
	if err != nil {
		return User{}, fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return User{}, fmt.Errorf("user request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}
	if resp.StatusCode >= 300 {
		return User{}, fmt.Errorf("user request failed: status=%d", resp.StatusCode)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return User{}, errors.New("discord user id missing")
	}
	return user, nil
}
