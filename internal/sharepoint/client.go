// Package sharepoint uploads files to a SharePoint document library through
// the Microsoft Graph API: OAuth2 client-credentials token acquisition, site
// and drive resolution, folder creation, and upload-by-path.
//
// Earlier generations of this pipeline probed dozens of URL permutations
// until one stuck. That behavior is collapsed here into a single request
// builder and a short, ordered list of known-good path shapes, each tried
// once inside a bounded retry budget.
package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Options configures a Client.
type Options struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteHost     string // e.g. contoso.sharepoint.com
	SitePath     string // e.g. /sites/engineering, empty for the root site
	DriveName    string // document library display name

	// TokenURL and BaseURL override the Microsoft endpoints; tests point
	// them at a local server. Empty means the real endpoints.
	TokenURL string
	BaseURL  string

	// MaxAttempts bounds retries per request for transient failures.
	// Backoff is the initial sleep, doubled per attempt and capped.
	MaxAttempts int
	Backoff     time.Duration

	HTTP *http.Client
}

// Client is a minimal Graph client scoped to what the pipeline needs.
type Client struct {
	opts Options

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	siteID   string
	driveID  string
}

// ErrUploadFailed is returned when every path shape and retry has been
// exhausted.
var ErrUploadFailed = errors.New("sharepoint: upload failed after all attempts")

const (
	defaultBaseURL     = "https://graph.microsoft.com/v1.0"
	defaultMaxAttempts = 3
	defaultBackoff     = 2 * time.Second
	tokenExpirySkew    = 60 * time.Second
)

// New returns a Client over opts, applying defaults for unset knobs.
func New(opts Options) *Client {
	if opts.TokenURL == "" {
		opts.TokenURL = fmt.Sprintf(
			"https://login.microsoftonline.com/%s/oauth2/v2.0/token", opts.TenantID)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{opts: opts}
}

// graphError mirrors the Graph API error envelope.
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeGraphError extracts code/message diagnostics from an error response.
func decodeGraphError(body []byte, status int) error {
	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Code != "" {
		return fmt.Errorf("sharepoint: graph error %s (HTTP %d): %s",
			ge.Error.Code, status, ge.Error.Message)
	}
	return fmt.Errorf("sharepoint: HTTP %d: %s", status, strings.TrimSpace(string(body)))
}

// acquireToken fetches (or reuses) a client-credentials access token.
func (c *Client) acquireToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.opts.ClientID},
		"client_secret": {c.opts.ClientSecret},
		"scope":         {"https://graph.microsoft.com/.default"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("sharepoint: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.opts.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("sharepoint: token request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sharepoint: token acquisition: %w", decodeGraphError(body, resp.StatusCode))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("sharepoint: parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("sharepoint: token response carried no access_token")
	}

	c.token = tok.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySkew)
	return c.token, nil
}

// do performs one authenticated Graph request with bounded retries on
// transient failures (429 and 5xx). It returns the response body on 2xx.
func (c *Client) do(ctx context.Context, method, requestURL string, payload []byte, contentType string) ([]byte, int, error) {
	var lastErr error
	backoff := c.opts.Backoff

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		token, err := c.acquireToken(ctx)
		if err != nil {
			return nil, 0, err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
		if err != nil {
			return nil, 0, fmt.Errorf("sharepoint: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.opts.HTTP.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("sharepoint: %s %s: %w", method, requestURL, err)
		} else {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			if resp.StatusCode < 300 {
				return respBody, resp.StatusCode, nil
			}
			lastErr = decodeGraphError(respBody, resp.StatusCode)
			if !transient(resp.StatusCode) {
				return respBody, resp.StatusCode, lastErr
			}
		}

		if attempt < c.opts.MaxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, 0, lastErr
}

// transient reports whether a status code is worth retrying.
func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// resolveSite caches and returns the Graph site ID.
func (c *Client) resolveSite(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.siteID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	addr := fmt.Sprintf("%s/sites/%s", c.opts.BaseURL, c.opts.SiteHost)
	if c.opts.SitePath != "" {
		addr += ":" + c.opts.SitePath
	}
	body, _, err := c.do(ctx, http.MethodGet, addr, nil, "")
	if err != nil {
		return "", fmt.Errorf("sharepoint: resolve site: %w", err)
	}

	var site struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &site); err != nil || site.ID == "" {
		return "", fmt.Errorf("sharepoint: site response carried no id")
	}

	c.mu.Lock()
	c.siteID = site.ID
	c.mu.Unlock()
	return site.ID, nil
}

// resolveDrive caches and returns the drive ID matching the configured
// library name, falling back to the site's default drive.
func (c *Client) resolveDrive(ctx context.Context, siteID string) (string, error) {
	c.mu.Lock()
	cached := c.driveID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	body, _, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/sites/%s/drives", c.opts.BaseURL, siteID), nil, "")
	if err != nil {
		return "", fmt.Errorf("sharepoint: list drives: %w", err)
	}

	var drives struct {
		Value []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &drives); err != nil {
		return "", fmt.Errorf("sharepoint: parse drives response: %w", err)
	}

	id := ""
	for _, d := range drives.Value {
		if strings.EqualFold(d.Name, c.opts.DriveName) {
			id = d.ID
			break
		}
	}
	if id == "" && len(drives.Value) > 0 {
		id = drives.Value[0].ID
	}
	if id == "" {
		return "", fmt.Errorf("sharepoint: site %s has no drives", siteID)
	}

	c.mu.Lock()
	c.driveID = id
	c.mu.Unlock()
	return id, nil
}

// EnsureFolder creates each segment of folder under the drive root. Already
// existing segments are fine.
func (c *Client) EnsureFolder(ctx context.Context, folder string) error {
	siteID, err := c.resolveSite(ctx)
	if err != nil {
		return err
	}
	driveID, err := c.resolveDrive(ctx, siteID)
	if err != nil {
		return err
	}

	parent := "root"
	for _, segment := range strings.Split(strings.Trim(folder, "/"), "/") {
		if segment == "" {
			continue
		}
		payload, _ := json.Marshal(map[string]any{
			"name":                              segment,
			"folder":                            map[string]any{},
			"@microsoft.graph.conflictBehavior": "fail",
		})
		addr := fmt.Sprintf("%s/drives/%s/%s/children", c.opts.BaseURL, driveID, parent)
		_, status, err := c.do(ctx, http.MethodPost, addr, payload, "application/json")
		if err != nil && status != http.StatusConflict {
			return fmt.Errorf("sharepoint: create folder %q: %w", segment, err)
		}
		if parent == "root" {
			parent = "root:/" + escapePath(segment) + ":"
		} else {
			parent = strings.TrimSuffix(parent, ":") + "/" + escapePath(segment) + ":"
		}
	}
	return nil
}

// uploadPathShapes returns the ordered list of upload URLs to try. The Graph
// upload-by-path endpoint is documented one way but deployed tenants answer
// to slightly different shapes; these three cover every tenant this pipeline
// has met.
func (c *Client) uploadPathShapes(siteID, driveID, folder, name string) []string {
	itemPath := escapePath(strings.Trim(folder, "/")) + "/" + escapePath(name)
	return []string{
		fmt.Sprintf("%s/drives/%s/root:/%s:/content", c.opts.BaseURL, driveID, itemPath),
		fmt.Sprintf("%s/sites/%s/drive/root:/%s:/content", c.opts.BaseURL, siteID, itemPath),
		fmt.Sprintf("%s/sites/%s/drives/%s/root:/%s:/content", c.opts.BaseURL, siteID, driveID, itemPath),
	}
}

// escapePath percent-escapes each path segment, preserving separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Upload writes data to folder/name in the configured document library,
// creating the folder when missing. Each known path shape is tried once (with
// per-request transient retries); the first response carrying an item id wins.
func (c *Client) Upload(ctx context.Context, folder, name string, data []byte) error {
	siteID, err := c.resolveSite(ctx)
	if err != nil {
		return err
	}
	driveID, err := c.resolveDrive(ctx, siteID)
	if err != nil {
		return err
	}
	if err := c.EnsureFolder(ctx, folder); err != nil {
		return err
	}

	var errs []string
	for _, shape := range c.uploadPathShapes(siteID, driveID, folder, name) {
		body, _, err := c.do(ctx, http.MethodPut, shape, data, "application/octet-stream")
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		var item struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(body, &item) == nil && item.ID != "" {
			return nil
		}
		errs = append(errs, fmt.Sprintf("%s: response carried no item id", shape))
	}
	return fmt.Errorf("%w: %s", ErrUploadFailed, strings.Join(errs, "; "))
}
