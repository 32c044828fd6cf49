package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/relayops/dispatch-api/pkg/circuitbreaker"
	"github.com/relayops/dispatch-api/pkg/logger"
)

// CRM is the read/update boundary the rule engine depends on. Property values
// come back as strings, matching the HubSpot v3 wire format.
type CRM interface {
	GetObjectProperties(ctx context.Context, objectType, objectID string, properties []string) (map[string]string, error)
	SearchContactByEmail(ctx context.Context, email string, properties []string) (map[string]string, error)
	UpdateObject(ctx context.Context, objectType, objectID string, properties map[string]string) error
}

type Config struct {
	BaseURL    string
	Token      string
	APITimeout time.Duration
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	logger     *logger.Logger
}

func NewClient(cfg Config, logger *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.hubapi.com"
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "hubspot-api",
			MaxFailures: 10,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
		}),
		logger: logger,
	}
}

type objectResponse struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type searchResponse struct {
	Total   int              `json:"total"`
	Results []objectResponse `json:"results"`
}

func (c *Client) GetObjectProperties(ctx context.Context, objectType, objectID string, properties []string) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s/%s", c.baseURL, url.PathEscape(objectType), url.PathEscape(objectID))
	if len(properties) > 0 {
		q := url.Values{}
		for _, p := range properties {
			q.Add("properties", p)
		}
		endpoint += "?" + q.Encode()
	}

	var obj objectResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &obj); err != nil {
		return nil, fmt.Errorf("hubspot get %s/%s: %w", objectType, objectID, err)
	}
	return obj.Properties, nil
}

func (c *Client) SearchContactByEmail(ctx context.Context, email string, properties []string) (map[string]string, error) {
	endpoint := c.baseURL + "/crm/v3/objects/contacts/search"
	body := map[string]interface{}{
		"filterGroups": []map[string]interface{}{{
			"filters": []map[string]string{{
				"propertyName": "email",
				"operator":     "EQ",
				"value":        email,
			}},
		}},
		"properties": properties,
		"limit":      1,
	}

	var resp searchResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, fmt.Errorf("hubspot search contact: %w", err)
	}
	if resp.Total == 0 || len(resp.Results) == 0 {
		return nil, fmt.Errorf("hubspot contact %s not found", email)
	}
	return resp.Results[0].Properties, nil
}

func (c *Client) UpdateObject(ctx context.Context, objectType, objectID string, properties map[string]string) error {
	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s/%s", c.baseURL, url.PathEscape(objectType), url.PathEscape(objectID))
	body := map[string]interface{}{"properties": properties}

	if err := c.doJSON(ctx, http.MethodPatch, endpoint, body, nil); err != nil {
		return fmt.Errorf("hubspot update %s/%s: %w", objectType, objectID, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	return c.cb.Execute(func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
		}

		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}
