// Package api is the typed HTTP client the tracker and watcher agents use
// to talk to the hub's REST surface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/securenest/securenest/internal/model"
)

// Client calls the hub's REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the hub at baseURL. token, when non-empty,
// is sent as a bearer token on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ParentByClerkID resolves the identity-provider id to the parent record.
func (c *Client) ParentByClerkID(ctx context.Context, clerkID string) (*model.Parent, error) {
	var out struct {
		Success bool          `json:"success"`
		Parent  *model.Parent `json:"parent"`
	}
	if err := c.get(ctx, "/parents/clerk/"+clerkID, &out); err != nil {
		return nil, err
	}
	return out.Parent, nil
}

// GeoFencesByParent fetches the parent's saved zones.
func (c *Client) GeoFencesByParent(ctx context.Context, parentID string) ([]model.GeoFence, error) {
	var out struct {
		Success   bool             `json:"success"`
		GeoFences []model.GeoFence `json:"geoFences"`
	}
	if err := c.get(ctx, "/geofencing/parent/"+parentID, &out); err != nil {
		return nil, err
	}
	return out.GeoFences, nil
}

// ChildrenByParent fetches the parent's registered children.
func (c *Client) ChildrenByParent(ctx context.Context, parentID string) ([]model.Child, error) {
	var out struct {
		Success  bool          `json:"success"`
		Children []model.Child `json:"children"`
	}
	if err := c.get(ctx, "/children/by-parent/"+parentID, &out); err != nil {
		return nil, err
	}
	return out.Children, nil
}

// AuthChild exchanges a family code for the child record it names. This is
// the child device's login.
func (c *Client) AuthChild(ctx context.Context, familyCode string) (*model.Child, error) {
	var out struct {
		Success bool         `json:"success"`
		Child   *model.Child `json:"child"`
	}
	body := map[string]string{"familyCode": familyCode}
	if err := c.post(ctx, "/children/auth", body, &out); err != nil {
		return nil, err
	}
	return out.Child, nil
}

// RecentLocations fetches the hub-side location history for a child.
func (c *Client) RecentLocations(ctx context.Context, childID string, limit int) ([]model.LocationPoint, error) {
	var out struct {
		Success   bool                  `json:"success"`
		Locations []model.LocationPoint `json:"locations"`
	}
	path := fmt.Sprintf("/locations/children/%s?limit=%d", childID, limit)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Locations, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var failure struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&failure); err == nil && failure.Message != "" {
			return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, failure.Message)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
