package dirsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Client talks to one directory instance and carries its session cookie.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client with an empty cookie jar that never follows
// redirects.
func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

func (c *Client) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	return c.doRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
}

// expectRedirect drains resp and checks it redirected to want.
func expectRedirect(resp *http.Response, want string) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 == 3 && resp.Header.Get("Location") == want {
		return nil
	}
	return parseErrorResponse(resp, body)
}

// decodeJSON decodes a JSON response into target.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, body)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func isLoginRedirect(resp *http.Response) bool {
	return resp.StatusCode/100 == 3 && resp.Header.Get("Location") == "/login"
}

// Register creates a local account and keeps the resulting session.
func (c *Client) Register(ctx context.Context, username, password, name string) error {
	resp, err := c.postForm(ctx, "/register", url.Values{
		"username": {username},
		"password": {password},
		"name":     {name},
	})
	if err != nil {
		return err
	}
	return expectRedirect(resp, "/secrets")
}

// Login signs in with a local credential and keeps the resulting session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	resp, err := c.postForm(ctx, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return err
	}
	return expectRedirect(resp, "/secrets")
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/logout", nil, nil)
	if err != nil {
		return err
	}
	return expectRedirect(resp, "/")
}

// Profile fields accepted by UpdateProfile.
type Profile struct {
	Name        string
	Company     string
	Link        string
	PhoneNumber string
	Address     string
	DateOfBirth string
}

// UpdateProfile submits the edit details form.
func (c *Client) UpdateProfile(ctx context.Context, p Profile) error {
	resp, err := c.postForm(ctx, "/update", url.Values{
		"name":        {p.Name},
		"company":     {p.Company},
		"link":        {p.Link},
		"phoneNumber": {p.PhoneNumber},
		"address":     {p.Address},
		"dob":         {p.DateOfBirth},
	})
	if err != nil {
		return err
	}
	return expectRedirect(resp, "/myProfile")
}

// Page fetches an HTML page and returns its body. Anonymous access to a
// protected page yields ErrNotAuthenticated.
func (c *Client) Page(ctx context.Context, path string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", parseErrorResponse(resp, body)
	}
	return string(body), nil
}

// Autocomplete searches the directory by name.
func (c *Client) Autocomplete(ctx context.Context, term string) ([]PersonSuggestion, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/autocomplete?term="+url.QueryEscape(term), nil, nil)
	if err != nil {
		return nil, err
	}

	var out []PersonSuggestion
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLiveness checks if the service is alive.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service can reach its database.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
