// discord.go -- Discord OAuth2 + bot API client.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultAPIURL is Discord's REST base.
const DefaultAPIURL = "https://discord.com/api"

// maxErrorBody caps how much of a failed response body is kept for logs.
const maxErrorBody = 512

// maxBody caps successful response bodies.
const maxBody = 1 << 20

// DiscordConfig holds client credentials and endpoints for DiscordClient.
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BotToken     string
	// APIURL overrides DefaultAPIURL (tests point it at httptest servers).
	APIURL  string
	Timeout time.Duration
}

// DiscordClient talks to Discord for code exchange, profile, and guild member lookups.
// Holds no per-user state; safe for concurrent use.
type DiscordClient struct {
	oauth    *oauth2.Config
	http     *http.Client
	apiURL   string
	botToken string
}

// NewDiscordClient builds a client. Every outbound call is bounded by cfg.Timeout
// (8s when zero); a timeout surfaces as ErrTransport.
func NewDiscordClient(cfg DiscordConfig) *DiscordClient {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &DiscordClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   apiURL + "/oauth2/authorize",
				TokenURL:  apiURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http:     &http.Client{Timeout: timeout},
		apiURL:   apiURL,
		botToken: cfg.BotToken,
	}
}

// AuthCodeURL returns the consent page URL: client_id, redirect_uri,
// response_type=code, scope=identify, prompt=none.
func (c *DiscordClient) AuthCodeURL() string {
	return c.oauth.AuthCodeURL("", oauth2.SetAuthURLParam("prompt", "none"))
}

// ExchangeCode trades an authorization code for an access token.
func (c *DiscordClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return "", &APIError{Kind: ErrExchangeFailed, Status: status, Body: truncate(string(re.Body))}
		}
		if isTransport(err) {
			return "", fmt.Errorf("%w: %w: %w", ErrExchangeFailed, ErrTransport, err)
		}
		return "", fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	return tok.AccessToken, nil
}

// discordUser is the subset of GET /users/@me we read.
type discordUser struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	GlobalName    *string `json:"global_name"`
	Avatar        *string `json:"avatar"`
}

// FetchProfile returns the token owner's identity via GET /users/@me.
func (c *DiscordClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var u discordUser
	if err := c.getJSON(ctx, "/users/@me", "Bearer "+accessToken, ErrProfileFetchFailed, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: response missing user id", ErrProfileFetchFailed)
	}
	return &Profile{
		ID:            u.ID,
		Handle:        u.Username,
		Discriminator: u.Discriminator,
		GlobalName:    nonEmpty(u.GlobalName),
		Avatar:        nonEmpty(u.Avatar),
	}, nil
}

// discordMember is the subset of GET /guilds/{guild}/members/{user} we read.
type discordMember struct {
	Nick  *string  `json:"nick"`
	Roles []string `json:"roles"`
}

// FetchMembership looks up principalID in guild groupID using the bot token.
// Any non-success status (404 included) is ErrNotAMember. Network failures,
// timeouts, and undecodable bodies are ErrTransport.
func (c *DiscordClient) FetchMembership(ctx context.Context, groupID, principalID string) (*Membership, error) {
	path := "/guilds/" + url.PathEscape(groupID) + "/members/" + url.PathEscape(principalID)
	var m discordMember
	if err := c.getJSON(ctx, path, "Bot "+c.botToken, ErrNotAMember, &m); err != nil {
		return nil, err
	}
	return &Membership{
		PrincipalID: principalID,
		Nickname:    nonEmpty(m.Nick),
		Tags:        m.Roles,
	}, nil
}

// getJSON performs an authorized GET against the API and decodes the body into out.
// statusKind is the error kind for non-2xx responses. Transport failures and
// decode failures on ErrNotAMember lookups report ErrTransport; for other kinds
// they are joined with statusKind.
func (c *DiscordClient) getJSON(ctx context.Context, path, authorization string, statusKind error, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %w", statusKind, err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportErr(statusKind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Kind: statusKind, Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return transportErr(statusKind, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// transportErr tags err as a transport failure. Membership lookups report
// transport failure alone so callers can tell it apart from absence.
func transportErr(kind, err error) error {
	if errors.Is(kind, ErrNotAMember) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return fmt.Errorf("%w: %w: %w", kind, ErrTransport, err)
}

// isTransport reports whether err came from the HTTP round trip itself
// (dial, TLS, timeout) rather than from a provider response.
func isTransport(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

// nonEmpty maps "" to nil so optional provider fields fall through display-name fallbacks.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
