package mux

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tipflow/internal/apiclient"
	"tipflow/internal/config"
	"tipflow/internal/services"
)

const component = "mux"

// Client creates assets through the Mux Video API.
type Client struct {
	api    *apiclient.Client
	policy string
}

// NewClient builds a client from the mux section of cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "configure", "config is nil", nil)
	}
	tokenID := strings.TrimSpace(cfg.Mux.TokenID)
	tokenSecret := strings.TrimSpace(cfg.Mux.TokenSecret)
	api, err := apiclient.New(apiclient.Options{
		Component:         component,
		BaseURL:           cfg.Mux.BaseURL,
		Timeout:           time.Duration(cfg.Mux.RequestTimeout) * time.Second,
		RequestsPerSecond: cfg.Mux.RequestsPerSecond,
		Authorize: func(r *http.Request) {
			r.SetBasicAuth(tokenID, tokenSecret)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Client{api: api, policy: cfg.Mux.PlaybackPolicy}, nil
}

// PlaybackPolicy returns the configured policy for new assets.
func (c *Client) PlaybackPolicy() string {
	return c.policy
}

// CreateAsset registers a new asset and returns its descriptor.
func (c *Client) CreateAsset(ctx context.Context, settings AssetSettings) (*Asset, error) {
	if len(settings.Input) == 0 || strings.TrimSpace(settings.Input[0].URL) == "" {
		return nil, services.Wrap(services.ErrValidation, component, "create asset", "input url is required", nil)
	}
	var resp struct {
		Data Asset `json:"data"`
	}
	err := c.api.Do(ctx, apiclient.Request{
		Operation: "create asset",
		Method:    http.MethodPost,
		Path:      "/video/v1/assets",
		Body:      settings,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, services.Wrap(services.ErrExternalService, component, "create asset", "response carried no asset id", nil)
	}
	return &resp.Data, nil
}
