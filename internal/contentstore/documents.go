package contentstore

import (
	"bytes"
	"encoding/json"
)

// Document types queried by the workflow.
const (
	TypeTip           = "tip"
	TypeVideoResource = "videoResource"
)

// StateProcessing marks a video resource whose hosted asset is being prepared.
const StateProcessing = "processing"

// Reference links one document to another.
type Reference struct {
	Key  string `json:"_key"`
	Ref  string `json:"_ref"`
	Type string `json:"_type"`
}

// NewReference builds a reference entry with the given array key.
func NewReference(key, target string) Reference {
	return Reference{Key: key, Ref: target, Type: "reference"}
}

// Slug accepts both a projected string and the raw {"current": ...} object.
type Slug string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Slug) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = Slug(v)
		return nil
	}
	var obj struct {
		Current string `json:"current"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = Slug(obj.Current)
	return nil
}

// Tip is the subset of a tip document the workflow reads.
type Tip struct {
	ID        string      `json:"_id"`
	Type      string      `json:"_type"`
	Title     string      `json:"title,omitempty"`
	Slug      Slug        `json:"slug,omitempty"`
	State     string      `json:"state,omitempty"`
	Resources []Reference `json:"resources,omitempty"`
}

// MuxAsset holds the hosting identifiers stored on a video resource. An empty
// playback id is omitted on the wire, matching an unset field.
type MuxAsset struct {
	MuxAssetID    string `json:"muxAssetId"`
	MuxPlaybackID string `json:"muxPlaybackId,omitempty"`
}

// VideoResource is the uploaded media document.
type VideoResource struct {
	ID               string    `json:"_id"`
	Type             string    `json:"_type"`
	OriginalVideoURL string    `json:"originalVideoUrl,omitempty"`
	FileName         string    `json:"fileName,omitempty"`
	State            string    `json:"state,omitempty"`
	MuxAsset         *MuxAsset `json:"muxAsset,omitempty"`
}

// MutationResult is the acknowledgement returned by the mutate endpoint.
type MutationResult struct {
	TransactionID string `json:"transactionId"`
	Results       []struct {
		ID        string `json:"id"`
		Operation string `json:"operation"`
	} `json:"results"`
}

// Patch is one patch mutation. Only one of Set or SetIfMissing is normally used.
type Patch struct {
	ID           string         `json:"id"`
	Set          map[string]any `json:"set,omitempty"`
	SetIfMissing map[string]any `json:"setIfMissing,omitempty"`
}

type mutation struct {
	Patch *Patch `json:"patch,omitempty"`
}

type mutateRequest struct {
	Mutations []mutation `json:"mutations"`
}

type queryResponse[T any] struct {
	Result *T `json:"result"`
}
