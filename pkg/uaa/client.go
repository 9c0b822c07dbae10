package uaa

import (
	"context"
	"crypto/tls"
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

// Sentinel errors for the per-recipient failure modes callers branch on.
var (
	// ErrNotFound means no directory user matched the id.
	ErrNotFound = errors.New("uaa: user not found")
	// ErrAmbiguous means the id filter matched more than one user.
	ErrAmbiguous = errors.New("uaa: ambiguous user lookup")
)

// User is a resolved directory profile. PrimaryEmail may be empty when the
// directory holds no address for the user.
type User struct {
	ID           string
	UserName     string
	GivenName    string
	FamilyName   string
	PrimaryEmail string
}

// Client looks up users in the UAA SCIM directory.
type Client struct {
	uaaURL string
	client *http.Client
}

// ClientConfig configures a directory client.
type ClientConfig struct {
	UAAURL        string
	TokenSource   oauth2.TokenSource
	SkipTLSVerify bool
	Timeout       time.Duration
}

// NewClient creates a directory client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.UAAURL == "" {
		return nil, fmt.Errorf("uaa: url is required")
	}
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("uaa: token source is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport
	if cfg.SkipTLSVerify {
		transport = insecureTransport()
	}
	return &Client{
		uaaURL: strings.TrimRight(cfg.UAAURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: cfg.TokenSource,
				Base:   transport,
			},
		},
	}, nil
}

// LookupUser resolves one stable user id to a profile using a SCIM id
// filter. Exactly one match is required: zero matches yield ErrNotFound,
// more than one ErrAmbiguous.
func (c *Client) LookupUser(ctx context.Context, id string) (*User, error) {
	filter := fmt.Sprintf(`id eq %q`, id)
	endpoint := c.uaaURL + "/Users?filter=" + url.QueryEscape(filter)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("user lookup returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result scimListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode user lookup response: %w", err)
	}

	switch len(result.Resources) {
	case 0:
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	case 1:
		return result.Resources[0].toUser(), nil
	default:
		return nil, fmt.Errorf("user %s matched %d profiles: %w", id, len(result.Resources), ErrAmbiguous)
	}
}

func insecureTransport() http.RoundTripper {
	return &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
}

type scimListResponse struct {
	TotalResults int        `json:"totalResults"`
	Resources    []scimUser `json:"resources"`
}

type scimUser struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Name     struct {
		GivenName  string `json:"givenName"`
		FamilyName string `json:"familyName"`
	} `json:"name"`
	Emails []struct {
		Value   string `json:"value"`
		Primary bool   `json:"primary"`
	} `json:"emails"`
}

func (s *scimUser) toUser() *User {
	u := &User{
		ID:         s.ID,
		UserName:   s.UserName,
		GivenName:  s.Name.GivenName,
		FamilyName: s.Name.FamilyName,
	}
	for _, e := range s.Emails {
		if e.Primary {
			u.PrimaryEmail = e.Value
			return u
		}
	}
	if len(s.Emails) > 0 {
		u.PrimaryEmail = s.Emails[0].Value
	}
	return u
}
