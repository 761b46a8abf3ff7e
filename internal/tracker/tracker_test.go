// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/waypost/internal/analytics"
	"github.com/tomtom215/waypost/internal/fingerprint"
	"github.com/tomtom215/waypost/internal/kvstore"
	"github.com/tomtom215/waypost/internal/models"
)

const testDate = "2026-03-14"

var testLoadTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	ticks chan time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, ticks: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Tick(time.Duration) (<-chan time.Time, func()) {
	return c.ticks, func() {}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingStore logs every write and can fail a chosen operation.
type recordingStore struct {
	*kvstore.Store

	mu      sync.Mutex
	ops     []string
	failOn  string
	watches atomic.Int32
}

func (s *recordingStore) record(op, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op+" "+path)
	if s.failOn != "" && s.failOn == op {
		return errors.New("injected " + op + " failure")
	}
	return nil
}

func (s *recordingStore) Get(ctx context.Context, path string, dst any) (bool, error) {
	if s.failOn == "get" {
		return false, errors.New("injected get failure")
	}
	return s.Store.Get(ctx, path, dst)
}

func (s *recordingStore) Set(ctx context.Context, path string, value any) error {
	if err := s.record("set", path); err != nil {
		return err
	}
	return s.Store.Set(ctx, path, value)
}

func (s *recordingStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := s.record("update", path); err != nil {
		return err
	}
	return s.Store.Update(ctx, path, fields)
}

func (s *recordingStore) Delete(ctx context.Context, path string) error {
	if err := s.record("delete", path); err != nil {
		return err
	}
	return s.Store.Delete(ctx, path)
}

func (s *recordingStore) Watch(ctx context.Context, path string, fn kvstore.WatchFunc) (func(), error) {
	s.watches.Add(1)
	return s.Store.Watch(ctx, path, fn)
}

func (s *recordingStore) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func (s *recordingStore) count(op string) int {
	n := 0
	for _, o := range s.Ops() {
		if o == op {
			n++
		}
	}
	return n
}

type event struct {
	name   string
	params analytics.Params
}

type recordingSink struct {
	mu     sync.Mutex
	events []event
	notify chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 16)}
}

func (s *recordingSink) LogEvent(_ context.Context, name string, params analytics.Params) error {
	s.mu.Lock()
	s.events = append(s.events, event{name: name, params: params})
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

func (s *recordingSink) named(name string) []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event
	for _, e := range s.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

type staticLocator struct {
	loc models.LocationInfo
}

func (l staticLocator) Locate(context.Context, string) models.LocationInfo { return l.loc }

type countBroadcaster struct {
	mu     sync.Mutex
	counts map[string]int
}

func (b *countBroadcaster) BroadcastUniqueCount(date string, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counts == nil {
		b.counts = make(map[string]int)
	}
	b.counts[date] = count
}

func (b *countBroadcaster) get(date string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.counts[date]
	return n, ok
}

type harness struct {
	store *recordingStore
	sink  *recordingSink
	clock *fakeClock
	deps  Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	kv, err := kvstore.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	h := &harness{
		store: &recordingStore{Store: kv},
		sink:  newRecordingSink(),
		clock: newFakeClock(testLoadTime),
	}
	h.deps = Deps{
		Store: h.store,
		Locator: staticLocator{loc: models.LocationInfo{
			Country:   "Greece",
			Region:    "Attica",
			City:      "Athens",
			Latitude:  models.KnownCoordinate(37.98),
			Longitude: models.KnownCoordinate(23.73),
			IP:        "203.0.113.7",
		}},
		Sink:  h.sink,
		Clock: h.clock,
	}
	return h
}

func (h *harness) open(t *testing.T, visitorID string) *Tracker {
	t.Helper()
	tr := New("load-"+visitorID, h.deps)
	t.Cleanup(tr.Stop)
	err := tr.Init(context.Background(), Hints{
		Identity:     fingerprint.Hints{VisitorID: visitorID, ClientIP: "203.0.113.7"},
		PageTitle:    "Agroclimate Viewer",
		PageLocation: "https://example.org/",
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return tr
}

func (h *harness) visitor(t *testing.T, id string) models.VisitorRecord {
	t.Helper()
	var rec models.VisitorRecord
	found, err := h.store.Store.Get(context.Background(), "unique-users/"+testDate+"/"+id, &rec)
	if err != nil || !found {
		t.Fatalf("visitor record %s: found=%v err=%v", id, found, err)
	}
	return rec
}

func (h *harness) exists(t *testing.T, path string) bool {
	t.Helper()
	var raw map[string]any
	found, err := h.store.Store.Get(context.Background(), path, &raw)
	if err != nil {
		t.Fatalf("Get %s: %v", path, err)
	}
	return found
}

func TestFirstVisitCreatesRecord(t *testing.T) {
	h := newHarness(t)
	tr := h.open(t, "visitor-a")

	rec := h.visitor(t, "visitor-a")
	if rec.Visits != 1 {
		t.Errorf("visits = %d, want 1", rec.Visits)
	}
	if rec.LastSeen != testLoadTime.UnixMilli() {
		t.Errorf("lastSeen = %d, want %d", rec.LastSeen, testLoadTime.UnixMilli())
	}
	if rec.Location.City != "Athens" {
		t.Errorf("location = %+v", rec.Location)
	}
	if h.exists(t, "active-sessions/"+testDate+"/visitor-a") {
		t.Error("first visit should not create a session marker")
	}

	visitPath := "visits/" + testDate + "/" + tr.VisitID()
	var visit models.VisitRecord
	found, err := h.store.Store.Get(context.Background(), visitPath, &visit)
	if err != nil || !found {
		t.Fatalf("visit record: found=%v err=%v", found, err)
	}
	if visit.UserID != "visitor-a" || !visit.Active {
		t.Errorf("visit record = %+v", visit)
	}

	if !tr.Initialized() || tr.VisitorID() != "visitor-a" || tr.Date() != testDate {
		t.Errorf("tracker state: initialized=%v visitor=%q date=%q", tr.Initialized(), tr.VisitorID(), tr.Date())
	}
}

func TestSecondVisitWithoutMarkerIncrements(t *testing.T) {
	h := newHarness(t)
	first := h.open(t, "visitor-a")
	first.Stop()

	h.clock.Advance(time.Minute)
	h.open(t, "visitor-a")

	rec := h.visitor(t, "visitor-a")
	if rec.Visits != 2 {
		t.Errorf("visits = %d, want 2", rec.Visits)
	}
	if rec.LastSeen != testLoadTime.Add(time.Minute).UnixMilli() {
		t.Errorf("lastSeen not updated: %d", rec.LastSeen)
	}
	if rec.Location.City != "Athens" {
		t.Errorf("location should be kept by partial update: %+v", rec.Location)
	}
	if !h.exists(t, "active-sessions/"+testDate+"/visitor-a") {
		t.Error("session marker should exist")
	}
}

func TestSecondVisitWithMarkerKeepsCount(t *testing.T) {
	h := newHarness(t)
	h.open(t, "visitor-a")
	h.clock.Advance(time.Minute)
	h.open(t, "visitor-a")

	h.clock.Advance(time.Minute)
	h.open(t, "visitor-a")

	rec := h.visitor(t, "visitor-a")
	if rec.Visits != 2 {
		t.Errorf("visits = %d, want 2", rec.Visits)
	}
	if rec.LastSeen != testLoadTime.Add(2*time.Minute).UnixMilli() {
		t.Errorf("lastSeen = %d, want %d", rec.LastSeen, testLoadTime.Add(2*time.Minute).UnixMilli())
	}
}

func TestVisitStartAndEndAreIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	path := "visits/" + testDate + "/abc"
	v := newVisit(h.store, h.clock, path, "visitor-a", models.UnknownLocation())

	if err := v.End(ctx); err != nil {
		t.Fatalf("End: %v", err)
	}
	if n := h.store.count("delete " + path); n != 0 {
		t.Errorf("End while inactive issued %d deletes", n)
	}

	for i := 0; i < 2; i++ {
		if err := v.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	if n := h.store.count("set " + path); n != 1 {
		t.Errorf("Start twice issued %d writes, want 1", n)
	}

	_ = v.End(ctx)
	_ = v.End(ctx)
	if n := h.store.count("delete " + path); n != 1 {
		t.Errorf("End twice issued %d deletes, want 1", n)
	}
	if v.Active() {
		t.Error("visit should be inactive")
	}
}

func TestVisitFlagFlipsBeforeStoreCall(t *testing.T) {
	h := newHarness(t)
	h.store.failOn = "set"
	v := newVisit(h.store, h.clock, "visits/"+testDate+"/abc", "visitor-a", models.UnknownLocation())

	if err := v.Start(context.Background()); err == nil {
		t.Fatal("expected Start error")
	}
	if !v.Active() {
		t.Error("visit should be active even though the write failed")
	}
}

func TestHandleVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	early := New("load-early", h.deps)
	defer early.Stop()
	if err := early.HandleVisibility(ctx, models.VisibilityHidden); err != nil {
		t.Errorf("before init: %v", err)
	}

	tr := h.open(t, "visitor-a")
	path := "visits/" + testDate + "/" + tr.VisitID()

	if err := tr.HandleVisibility(ctx, models.VisibilityHidden); err != nil {
		t.Fatalf("hidden: %v", err)
	}
	if h.exists(t, path) || tr.VisitActive() {
		t.Error("hidden should end the visit")
	}

	if err := tr.HandleVisibility(ctx, "prerender"); err != nil {
		t.Fatalf("unknown state: %v", err)
	}
	if tr.VisitActive() {
		t.Error("unknown state should be ignored")
	}

	if err := tr.HandleVisibility(ctx, models.VisibilityVisible); err != nil {
		t.Fatalf("visible: %v", err)
	}
	if !h.exists(t, path) || !tr.VisitActive() {
		t.Error("visible should restart the visit")
	}
}

func TestPageViewEmitted(t *testing.T) {
	h := newHarness(t)
	h.open(t, "visitor-a")

	views := h.sink.named(models.EventPageView)
	if len(views) != 1 {
		t.Fatalf("page_view events = %d, want 1", len(views))
	}
	p := views[0].params
	if p["page_title"] != "Agroclimate Viewer" || p["page_location"] != "https://example.org/" || p["user_id"] != "visitor-a" {
		t.Errorf("page_view params = %v", p)
	}
}

func TestHandleMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.open(t, "visitor-a")

	tests := []struct {
		name      string
		msg       models.ViewerMessage
		forwarded bool
		wantLabel any
	}{
		{
			name:      "analytics message",
			msg:       models.ViewerMessage{Type: "analytics", Action: "click", Category: "map", Label: "layer1"},
			forwarded: true,
			wantLabel: "layer1",
		},
		{
			name:      "missing label defaults to empty",
			msg:       models.ViewerMessage{Type: "analytics", Action: "zoom", Category: "map"},
			forwarded: true,
			wantLabel: "",
		},
		{
			name:      "non-string values pass through",
			msg:       models.ViewerMessage{Type: "analytics", Action: float64(3), Category: true, Label: float64(7)},
			forwarded: true,
			wantLabel: float64(7),
		},
		{
			name:      "falsy label becomes empty",
			msg:       models.ViewerMessage{Type: "analytics", Action: "pan", Label: false},
			forwarded: true,
			wantLabel: "",
		},
		{
			name: "non-string type ignored",
			msg:  models.ViewerMessage{Type: float64(1), Action: "click"},
		},
		{
			name: "other type ignored",
			msg:  models.ViewerMessage{Type: "resize", Action: "click"},
		},
		{
			name: "empty message ignored",
			msg:  models.ViewerMessage{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(h.sink.named(models.EventGeeInteraction))
			if got := tr.HandleMessage(ctx, tt.msg); got != tt.forwarded {
				t.Fatalf("HandleMessage() = %v, want %v", got, tt.forwarded)
			}
			events := h.sink.named(models.EventGeeInteraction)
			if !tt.forwarded {
				if len(events) != before {
					t.Errorf("ignored message emitted an event")
				}
				return
			}
			if len(events) != before+1 {
				t.Fatalf("gee_interaction events = %d, want %d", len(events), before+1)
			}
			p := events[len(events)-1].params
			if p["action"] != tt.msg.Action || p["category"] != tt.msg.Category || p["label"] != tt.wantLabel || p["user_id"] != "visitor-a" {
				t.Errorf("gee_interaction params = %v", p)
			}
		})
	}
}

func TestHandleMessageBeforeInit(t *testing.T) {
	h := newHarness(t)
	tr := New("load-early", h.deps)
	if tr.HandleMessage(context.Background(), models.ViewerMessage{Type: "analytics", Action: "click"}) {
		t.Error("messages before init should be ignored")
	}
}

func TestEngagementEvents(t *testing.T) {
	h := newHarness(t)
	tr := h.open(t, "visitor-a")

	h.clock.Advance(61500 * time.Millisecond)
	h.clock.ticks <- h.clock.Now()

	deadline := time.Now().Add(2 * time.Second)
	for len(h.sink.named(models.EventUserEngagement)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	events := h.sink.named(models.EventUserEngagement)
	if len(events) != 1 {
		t.Fatalf("user_engagement events = %d, want 1", len(events))
	}
	p := events[0].params
	if p["engagement_time"] != int64(61) || p["type"] != "user" || p["user_id"] != "visitor-a" {
		t.Errorf("user_engagement params = %v", p)
	}

	tr.Stop()
	select {
	case h.clock.ticks <- h.clock.Now():
		t.Error("engagement loop still running after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnloadReleasesMarkerThenEndsVisit(t *testing.T) {
	h := newHarness(t)
	h.open(t, "visitor-a")
	h.clock.Advance(time.Minute)
	tr := h.open(t, "visitor-a")

	markerPath := "active-sessions/" + testDate + "/visitor-a"
	visitPath := "visits/" + testDate + "/" + tr.VisitID()

	before := len(h.store.Ops())
	tr.Unload(context.Background())
	ops := h.store.Ops()[before:]

	want := []string{"delete " + markerPath, "delete " + visitPath}
	if strings.Join(ops, ",") != strings.Join(want, ",") {
		t.Errorf("unload ops = %v, want %v", ops, want)
	}
	if h.exists(t, markerPath) || h.exists(t, visitPath) {
		t.Error("marker and visit should be removed")
	}

	// A second unload has nothing left to do.
	tr.Unload(context.Background())
	if len(h.store.Ops()) != before+2 {
		t.Errorf("second unload wrote again: %v", h.store.Ops()[before:])
	}
}

func TestUnloadFirstVisitOnlyEndsVisit(t *testing.T) {
	h := newHarness(t)
	tr := h.open(t, "visitor-a")

	before := len(h.store.Ops())
	tr.Unload(context.Background())
	ops := h.store.Ops()[before:]

	if len(ops) != 1 || !strings.HasPrefix(ops[0], "delete visits/") {
		t.Errorf("unload ops = %v, want a single visit delete", ops)
	}
}

func TestUnloadContinuesAfterListenerFailure(t *testing.T) {
	h := newHarness(t)
	h.open(t, "visitor-a")
	h.clock.Advance(time.Minute)
	tr := h.open(t, "visitor-a")

	h.store.failOn = "delete"
	before := len(h.store.Ops())
	tr.Unload(context.Background())
	if n := len(h.store.Ops()) - before; n != 2 {
		t.Errorf("unload attempted %d deletes, want 2", n)
	}
}

func TestInitTwice(t *testing.T) {
	h := newHarness(t)
	tr := h.open(t, "visitor-a")
	if err := tr.Init(context.Background(), Hints{}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init() = %v, want ErrAlreadyInitialized", err)
	}
}

func TestInitFingerprintFailure(t *testing.T) {
	h := newHarness(t)
	tr := New("load-x", h.deps)
	defer tr.Stop()

	err := tr.Init(context.Background(), Hints{})
	if !errors.Is(err, fingerprint.ErrNoComponents) {
		t.Fatalf("Init() = %v, want ErrNoComponents", err)
	}
	if tr.Initialized() || tr.VisitorID() != "" {
		t.Error("failed init should leave no tracking state")
	}
	if len(h.store.Ops()) != 0 || len(h.sink.named(models.EventPageView)) != 0 {
		t.Error("failed init should not write or emit")
	}
}

func TestInitStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.failOn = "set"
	tr := New("load-x", h.deps)
	defer tr.Stop()

	err := tr.Init(context.Background(), Hints{Identity: fingerprint.Hints{VisitorID: "visitor-a"}})
	if err == nil {
		t.Fatal("expected store failure")
	}
	if tr.Initialized() {
		t.Error("init should be aborted")
	}
	if len(h.sink.named(models.EventPageView)) != 0 {
		t.Error("page_view should not be emitted after a store failure")
	}
}

func TestLiveUniqueCount(t *testing.T) {
	h := newHarness(t)
	b := &countBroadcaster{}
	h.deps.Broadcaster = b

	h.open(t, "visitor-a")
	h.open(t, "visitor-b")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if n, ok := b.get(testDate); ok && n == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	n, _ := b.get(testDate)
	t.Errorf("unique count = %d, want 2", n)
}

func TestDatePartitionUsesTimezone(t *testing.T) {
	h := newHarness(t)
	loc := time.FixedZone("UTC-12", -12*60*60)
	h.deps.Location = loc
	h.clock = newFakeClock(time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC))
	h.deps.Clock = h.clock

	tr := h.open(t, "visitor-a")
	if tr.Date() != "2026-03-13" {
		t.Errorf("Date() = %q, want 2026-03-13", tr.Date())
	}
}

func TestVisitID(t *testing.T) {
	got := VisitID(time.UnixMilli(1700000000000))
	if got != "loyw3v28" {
		t.Errorf("VisitID() = %q, want loyw3v28", got)
	}
}
