package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tipflow/internal/contentstore"
	"tipflow/internal/deepgram"
	"tipflow/internal/mux"
	"tipflow/internal/notifications"
	"tipflow/internal/services"
)

type fakeContent struct {
	mu              sync.Mutex
	tips            map[string]*contentstore.Tip
	videos          map[string]*contentstore.VideoResource
	calls           map[string]int
	patchVideoFails int
	tipMutations    [][]contentstore.Reference
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		tips:   make(map[string]*contentstore.Tip),
		videos: make(map[string]*contentstore.VideoResource),
		calls:  make(map[string]int),
	}
}

func (f *fakeContent) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeContent) tip(id string) *contentstore.Tip {
	f.mu.Lock()
	defer f.mu.Unlock()
	tip, ok := f.tips[id]
	if !ok {
		return nil
	}
	copyTip := *tip
	copyTip.Resources = append([]contentstore.Reference(nil), tip.Resources...)
	return &copyTip
}

func (f *fakeContent) GetTip(_ context.Context, id string) (*contentstore.Tip, error) {
	f.mu.Lock()
	f.calls["GetTip"]++
	f.mu.Unlock()
	return f.tip(id), nil
}

func (f *fakeContent) GetVideoResource(_ context.Context, id string) (*contentstore.VideoResource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetVideoResource"]++
	doc, ok := f.videos[id]
	if !ok {
		return nil, nil
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *fakeContent) PatchVideoResource(_ context.Context, id string, asset contentstore.MuxAsset) (*contentstore.VideoResource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PatchVideoResource"]++
	if f.patchVideoFails > 0 {
		f.patchVideoFails--
		return nil, services.Wrap(services.ErrTransient, "fake", "patch", "content store unavailable", nil)
	}
	doc, ok := f.videos[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fake", "patch", "missing", nil)
	}
	a := asset
	doc.MuxAsset = &a
	doc.State = contentstore.StateProcessing
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *fakeContent) SetTipResourcesIfMissing(_ context.Context, tipID string, refs []contentstore.Reference) (*contentstore.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SetTipResourcesIfMissing"]++
	f.tipMutations = append(f.tipMutations, refs)
	tip, ok := f.tips[tipID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "fake", "patch tip", "missing", nil)
	}
	if tip.Resources == nil {
		tip.Resources = append([]contentstore.Reference(nil), refs...)
	}
	return &contentstore.MutationResult{TransactionID: fmt.Sprintf("tx-%d", len(f.tipMutations))}, nil
}

type fakeHost struct {
	mu          sync.Mutex
	calls       int
	playbackIDs []mux.PlaybackID
	settings    []mux.AssetSettings
}

func (f *fakeHost) CreateAsset(_ context.Context, settings mux.AssetSettings) (*mux.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.settings = append(f.settings, settings)
	return &mux.Asset{
		ID:          "asset1",
		Status:      "preparing",
		PlaybackIDs: append([]mux.PlaybackID(nil), f.playbackIDs...),
	}, nil
}

func (f *fakeHost) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranscriber struct {
	mu     sync.Mutex
	orders []deepgram.Order
}

func (f *fakeTranscriber) OrderTranscript(_ context.Context, order deepgram.Order) (*deepgram.Acknowledgement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	return &deepgram.Acknowledgement{
		RequestID:       fmt.Sprintf("req-%d", len(f.orders)),
		VideoResourceID: order.VideoResourceID,
		ModuleSlug:      order.ModuleSlug,
	}, nil
}

func (f *fakeTranscriber) all() []deepgram.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deepgram.Order(nil), f.orders...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	fail   bool
}

func (f *fakeNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	if f.fail {
		return errors.New("notifier offline")
	}
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
