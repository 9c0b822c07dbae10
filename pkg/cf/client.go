package cf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Client talks to the Cloud Foundry platform API. All calls carry the bearer
// token from the configured token source.
type Client struct {
	apiURL string
	client *http.Client
}

// ClientConfig configures a platform API client.
type ClientConfig struct {
	// APIURL is the API endpoint, e.g. https://api.sys.example.com.
	APIURL string
	// TokenSource supplies bearer tokens; see TokenSource.
	TokenSource oauth2.TokenSource
	// SkipTLSVerify disables certificate validation (self-signed installs).
	SkipTLSVerify bool
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

// NewClient creates a platform API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("cf: api url is required")
	}
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("cf: token source is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: cfg.TokenSource,
				Base:   transportFor(cfg.SkipTLSVerify),
			},
		},
	}, nil
}

// ListOrganizations returns all organizations visible to the caller.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var list resourceList
	if err := c.get(ctx, "/v2/organizations", &list); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	orgs := make([]Organization, 0, len(list.Resources))
	for _, r := range list.Resources {
		orgs = append(orgs, Organization{
			GUID:      r.Metadata.GUID,
			Name:      r.Entity.Name,
			QuotaGUID: r.Entity.QuotaDefinitionGUID,
		})
	}
	return orgs, nil
}

// GetQuota fetches one quota definition.
func (c *Client) GetQuota(ctx context.Context, quotaGUID string) (*Quota, error) {
	var r resource
	if err := c.get(ctx, "/v2/quota_definitions/"+url.PathEscape(quotaGUID), &r); err != nil {
		return nil, fmt.Errorf("get quota %s: %w", quotaGUID, err)
	}
	return &Quota{GUID: r.Metadata.GUID, MemoryLimitMB: r.Entity.MemoryLimit}, nil
}

// MemoryUsedMB returns the platform's aggregate memory usage figure for an
// organization. This is the number billing uses, so alerting uses it too
// rather than summing individual apps.
func (c *Client) MemoryUsedMB(ctx context.Context, orgGUID string) (int, error) {
	var usage memoryUsageResponse
	if err := c.get(ctx, "/v2/organizations/"+url.PathEscape(orgGUID)+"/memory_usage", &usage); err != nil {
		return 0, fmt.Errorf("org %s memory usage: %w", orgGUID, err)
	}
	return usage.MemoryUsageInMB, nil
}

// ListSpaces returns the spaces of one organization.
func (c *Client) ListSpaces(ctx context.Context, orgGUID string) ([]Space, error) {
	var list resourceList
	if err := c.get(ctx, "/v2/organizations/"+url.PathEscape(orgGUID)+"/spaces", &list); err != nil {
		return nil, fmt.Errorf("org %s spaces: %w", orgGUID, err)
	}
	spaces := make([]Space, 0, len(list.Resources))
	for _, r := range list.Resources {
		spaces = append(spaces, Space{GUID: r.Metadata.GUID, Name: r.Entity.Name})
	}
	return spaces, nil
}

// SpaceApplications returns the applications of one space, with their
// instance counts and per-instance memory.
func (c *Client) SpaceApplications(ctx context.Context, spaceGUID string) ([]Application, error) {
	var summary spaceSummaryResponse
	if err := c.get(ctx, "/v2/spaces/"+url.PathEscape(spaceGUID)+"/summary", &summary); err != nil {
		return nil, fmt.Errorf("space %s summary: %w", spaceGUID, err)
	}
	apps := make([]Application, 0, len(summary.Apps))
	for _, a := range summary.Apps {
		apps = append(apps, Application{
			GUID:      a.GUID,
			Name:      a.Name,
			Instances: a.Instances,
			MemoryMB:  a.Memory,
		})
	}
	return apps, nil
}

// OrgManagerIDs returns the stable user ids of an organization's managers.
func (c *Client) OrgManagerIDs(ctx context.Context, orgGUID string) ([]string, error) {
	var list resourceList
	if err := c.get(ctx, "/v2/organizations/"+url.PathEscape(orgGUID)+"/managers", &list); err != nil {
		return nil, fmt.Errorf("org %s managers: %w", orgGUID, err)
	}
	ids := make([]string, 0, len(list.Resources))
	for _, r := range list.Resources {
		ids = append(ids, r.Metadata.GUID)
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
