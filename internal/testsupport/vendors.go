package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Vendor routes that FailNext can target.
const (
	RouteQuery  = "query"
	RouteMutate = "mutate"
	RouteAssets = "assets"
	RouteListen = "listen"
)

// Vendors is an in-memory stand-in for the content store, the video host and
// the transcription API, served from one httptest server.
type Vendors struct {
	Server *httptest.Server

	mu          sync.Mutex
	docs        map[string]map[string]any
	playbackIDs []map[string]string
	failures    map[string]int
	calls       map[string]int
	mutations   []json.RawMessage
	listenURLs  []string
}

// NewVendors starts the fake and registers cleanup.
func NewVendors(t testing.TB) *Vendors {
	t.Helper()
	v := &Vendors{
		docs:        make(map[string]map[string]any),
		playbackIDs: []map[string]string{{"id": "pb-public", "policy": "public"}},
		failures:    make(map[string]int),
		calls:       make(map[string]int),
	}
	v.Server = httptest.NewServer(http.HandlerFunc(v.serve))
	t.Cleanup(v.Server.Close)
	return v
}

// URL returns the base URL for every vendor client.
func (v *Vendors) URL() string {
	return v.Server.URL
}

// PutDocument stores a content document keyed by its _id.
func (v *Vendors) PutDocument(doc map[string]any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id, _ := doc["_id"].(string)
	v.docs[id] = cloneDoc(doc)
}

// Document returns a copy of the stored document, or nil.
func (v *Vendors) Document(id string) map[string]any {
	v.mu.Lock()
	defer v.mu.Unlock()
	doc, ok := v.docs[id]
	if !ok {
		return nil
	}
	return cloneDoc(doc)
}

// SetPlaybackIDs replaces the playback ids attached to created assets.
func (v *Vendors) SetPlaybackIDs(ids []map[string]string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playbackIDs = ids
}

// FailNext makes the next n calls to route answer 503.
func (v *Vendors) FailNext(route string, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures[route] = n
}

// Calls reports how many requests reached route, failures included.
func (v *Vendors) Calls(route string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[route]
}

// Mutations returns the raw mutate request bodies in arrival order.
func (v *Vendors) Mutations() []json.RawMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]json.RawMessage(nil), v.mutations...)
}

// ListenURLs returns the request URLs received by the transcription route.
func (v *Vendors) ListenURLs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.listenURLs...)
}

func (v *Vendors) serve(w http.ResponseWriter, r *http.Request) {
	route := classifyRoute(r)
	if route == "" {
		http.NotFound(w, r)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls[route]++
	if v.failures[route] > 0 {
		v.failures[route]--
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	switch route {
	case RouteQuery:
		v.serveQuery(w, r)
	case RouteMutate:
		v.serveMutate(w, r)
	case RouteAssets:
		v.serveAsset(w, r)
	case RouteListen:
		v.listenURLs = append(v.listenURLs, r.URL.String())
		writeJSON(w, map[string]any{"request_id": fmt.Sprintf("req-%d", v.calls[RouteListen])})
	}
}

func classifyRoute(r *http.Request) string {
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.Contains(path, "/data/query/"):
		return RouteQuery
	case r.Method == http.MethodPost && strings.Contains(path, "/data/mutate/"):
		return RouteMutate
	case r.Method == http.MethodPost && path == "/video/v1/assets":
		return RouteAssets
	case r.Method == http.MethodPost && path == "/v1/listen":
		return RouteListen
	default:
		return ""
	}
}

func (v *Vendors) serveQuery(w http.ResponseWriter, r *http.Request) {
	var id, docType string
	_ = json.Unmarshal([]byte(r.URL.Query().Get("$id")), &id)
	_ = json.Unmarshal([]byte(r.URL.Query().Get("$type")), &docType)
	doc, ok := v.docs[id]
	if !ok || (docType != "" && doc["_type"] != docType) {
		writeJSON(w, map[string]any{"result": nil})
		return
	}
	writeJSON(w, map[string]any{"result": doc})
}

func (v *Vendors) serveMutate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mutations []struct {
			Patch *struct {
				ID           string         `json:"id"`
				Set          map[string]any `json:"set"`
				SetIfMissing map[string]any `json:"setIfMissing"`
			} `json:"patch"`
		} `json:"mutations"`
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		http.Error(w, `{"error":"bad mutation"}`, http.StatusBadRequest)
		return
	}
	v.mutations = append(v.mutations, raw)

	results := make([]map[string]string, 0, len(body.Mutations))
	for _, m := range body.Mutations {
		if m.Patch == nil {
			continue
		}
		doc, ok := v.docs[m.Patch.ID]
		if !ok {
			http.Error(w, `{"error":"document not found"}`, http.StatusNotFound)
			return
		}
		for key, value := range m.Patch.SetIfMissing {
			if _, exists := doc[key]; !exists {
				doc[key] = value
			}
		}
		for key, value := range m.Patch.Set {
			doc[key] = value
		}
		results = append(results, map[string]string{"id": m.Patch.ID, "operation": "update"})
	}
	writeJSON(w, map[string]any{
		"transactionId": fmt.Sprintf("tx-%d", len(v.mutations)),
		"results":       results,
	})
}

func (v *Vendors) serveAsset(w http.ResponseWriter, r *http.Request) {
	var settings map[string]any
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
		return
	}
	ids := make([]map[string]string, len(v.playbackIDs))
	copy(ids, v.playbackIDs)
	writeJSON(w, map[string]any{
		"data": map[string]any{
			"id":           fmt.Sprintf("asset-%d", v.calls[RouteAssets]),
			"status":       "preparing",
			"passthrough":  settings["passthrough"],
			"playback_ids": ids,
		},
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func cloneDoc(doc map[string]any) map[string]any {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
