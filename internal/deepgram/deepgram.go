// Package deepgram orders callback-based transcripts from Deepgram.
//
// The transcript itself arrives later on the configured callback URL; the
// order carries the video resource id and module slug as callback query
// parameters so the receiver can route the result.
package deepgram

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tipflow/internal/apiclient"
	"tipflow/internal/config"
	"tipflow/internal/services"
)

const component = "deepgram"

// Order describes one transcript request.
type Order struct {
	ModuleSlug      string
	MediaURL        string
	VideoResourceID string
}

// Acknowledgement is the vendor's receipt for an accepted order.
type Acknowledgement struct {
	RequestID       string `json:"request_id"`
	VideoResourceID string `json:"videoResourceId"`
	ModuleSlug      string `json:"moduleSlug,omitempty"`
}

// Client submits transcript orders.
type Client struct {
	api         *apiclient.Client
	model       string
	callbackURL string
}

// NewClient builds a client from the deepgram section of cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "configure", "config is nil", nil)
	}
	key := strings.TrimSpace(cfg.Deepgram.APIKey)
	api, err := apiclient.New(apiclient.Options{
		Component:         component,
		BaseURL:           cfg.Deepgram.BaseURL,
		Timeout:           time.Duration(cfg.Deepgram.RequestTimeout) * time.Second,
		RequestsPerSecond: cfg.Deepgram.RequestsPerSecond,
		Authorize: func(r *http.Request) {
			r.Header.Set("Authorization", "Token "+key)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		api:         api,
		model:       strings.TrimSpace(cfg.Deepgram.Model),
		callbackURL: strings.TrimSpace(cfg.Deepgram.CallbackURL),
	}, nil
}

// OrderTranscript submits the media for asynchronous transcription.
func (c *Client) OrderTranscript(ctx context.Context, order Order) (*Acknowledgement, error) {
	if strings.TrimSpace(order.MediaURL) == "" {
		return nil, services.Wrap(services.ErrValidation, component, "order transcript", "media url is required", nil)
	}
	if strings.TrimSpace(order.VideoResourceID) == "" {
		return nil, services.Wrap(services.ErrValidation, component, "order transcript", "video resource id is required", nil)
	}
	callback, err := c.callback(order)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"punctuate":  {"true"},
		"paragraphs": {"true"},
		"utterances": {"true"},
		"callback":   {callback},
	}
	if c.model != "" {
		query.Set("model", c.model)
	}

	var ack Acknowledgement
	err = c.api.Do(ctx, apiclient.Request{
		Operation: "order transcript",
		Method:    http.MethodPost,
		Path:      "/v1/listen",
		Query:     query,
		Body:      map[string]string{"url": order.MediaURL},
	}, &ack)
	if err != nil {
		return nil, err
	}
	if ack.RequestID == "" {
		return nil, services.Wrap(services.ErrExternalService, component, "order transcript", "response carried no request id", nil)
	}
	ack.VideoResourceID = order.VideoResourceID
	ack.ModuleSlug = order.ModuleSlug
	return &ack, nil
}

func (c *Client) callback(order Order) (string, error) {
	if c.callbackURL == "" {
		return "", services.Wrap(services.ErrConfiguration, component, "order transcript", "deepgram.callback_url is not set", nil)
	}
	u, err := url.Parse(c.callbackURL)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, component, "order transcript", "invalid callback url", err)
	}
	q := u.Query()
	q.Set("videoResourceId", order.VideoResourceID)
	if order.ModuleSlug != "" {
		q.Set("moduleSlug", order.ModuleSlug)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
