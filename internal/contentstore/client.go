package contentstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tipflow/internal/apiclient"
	"tipflow/internal/config"
	"tipflow/internal/services"
)

const component = "contentstore"

// documentQuery selects a single document by type and id. Both values are
// bound as parameters.
const documentQuery = `*[_type == $type && _id == $id][0]`

// Client talks to one Sanity project and dataset.
type Client struct {
	api        *apiclient.Client
	dataset    string
	apiVersion string
}

// NewClient builds a client from the sanity section of cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "configure", "config is nil", nil)
	}
	token := strings.TrimSpace(cfg.Sanity.Token)
	api, err := apiclient.New(apiclient.Options{
		Component:         component,
		BaseURL:           cfg.SanityBaseURL(),
		Timeout:           time.Duration(cfg.Sanity.RequestTimeout) * time.Second,
		RequestsPerSecond: cfg.Sanity.RequestsPerSecond,
		Authorize: func(r *http.Request) {
			if token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	version := strings.TrimPrefix(strings.TrimSpace(cfg.Sanity.APIVersion), "v")
	return &Client{
		api:        api,
		dataset:    strings.TrimSpace(cfg.Sanity.Dataset),
		apiVersion: "v" + version,
	}, nil
}

// GetTip fetches a tip by id. A missing document returns (nil, nil).
func (c *Client) GetTip(ctx context.Context, id string) (*Tip, error) {
	return fetchDocument[Tip](ctx, c, TypeTip, id)
}

// GetVideoResource fetches a video resource by id. A missing document
// returns (nil, nil).
func (c *Client) GetVideoResource(ctx context.Context, id string) (*VideoResource, error) {
	return fetchDocument[VideoResource](ctx, c, TypeVideoResource, id)
}

// PatchVideoResource writes the Mux identifiers together with the processing
// state and returns the re-fetched document.
func (c *Client) PatchVideoResource(ctx context.Context, id string, asset MuxAsset) (*VideoResource, error) {
	if strings.TrimSpace(id) == "" {
		return nil, services.Wrap(services.ErrValidation, component, "patch video resource", "document id is required", nil)
	}
	patch := Patch{
		ID: id,
		Set: map[string]any{
			"muxAsset": asset,
			"state":    StateProcessing,
		},
	}
	if _, err := c.Mutate(ctx, patch); err != nil {
		return nil, err
	}
	updated, err := c.GetVideoResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, services.Wrap(services.ErrNotFound, component, "patch video resource", fmt.Sprintf("video resource %s vanished after patch", id), nil)
	}
	return updated, nil
}

// SetTipResourcesIfMissing attaches refs to the tip's resources array only
// when the field is unset. An existing array is left untouched.
func (c *Client) SetTipResourcesIfMissing(ctx context.Context, tipID string, refs []Reference) (*MutationResult, error) {
	if strings.TrimSpace(tipID) == "" {
		return nil, services.Wrap(services.ErrValidation, component, "patch tip", "document id is required", nil)
	}
	return c.Mutate(ctx, Patch{
		ID:           tipID,
		SetIfMissing: map[string]any{"resources": refs},
	})
}

// Mutate commits the given patches in one transaction.
func (c *Client) Mutate(ctx context.Context, patches ...Patch) (*MutationResult, error) {
	body := mutateRequest{Mutations: make([]mutation, 0, len(patches))}
	for i := range patches {
		body.Mutations = append(body.Mutations, mutation{Patch: &patches[i]})
	}
	var result MutationResult
	err := c.api.Do(ctx, apiclient.Request{
		Operation: "mutate",
		Method:    http.MethodPost,
		Path:      fmt.Sprintf("/%s/data/mutate/%s", c.apiVersion, c.dataset),
		Query:     url.Values{"returnIds": {"true"}, "visibility": {"sync"}},
		Body:      body,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func fetchDocument[T any](ctx context.Context, c *Client, docType, id string) (*T, error) {
	id = strings.TrimSpace(id)
	operation := "get " + docType
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, component, operation, "document id is required", nil)
	}
	query := url.Values{"query": {documentQuery}}
	if err := bindParam(query, "type", docType); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, operation, "encode parameter", err)
	}
	if err := bindParam(query, "id", id); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, operation, "encode parameter", err)
	}
	var resp queryResponse[T]
	err := c.api.Do(ctx, apiclient.Request{
		Operation: operation,
		Method:    http.MethodGet,
		Path:      fmt.Sprintf("/%s/data/query/%s", c.apiVersion, c.dataset),
		Query:     query,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// bindParam adds a GROQ parameter; values travel JSON encoded.
func bindParam(query url.Values, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	query.Set("$"+name, string(encoded))
	return nil
}
