// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/waypost/internal/analytics"
	"github.com/tomtom215/waypost/internal/fingerprint"
	"github.com/tomtom215/waypost/internal/kvstore"
	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/metrics"
	"github.com/tomtom215/waypost/internal/models"
)

// DefaultEngagementInterval is the user_engagement period.
const DefaultEngagementInterval = 60 * time.Second

// DefaultHeartbeatInterval is how often an open page sends a keepalive.
// It must stay well below the registry idle timeout.
const DefaultHeartbeatInterval = 5 * time.Minute

var (
	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("tracker: already initialized")

	// ErrUnknownLoad is returned for a page-load id the registry does not hold.
	ErrUnknownLoad = errors.New("tracker: unknown page load")
)

// Store is the subset of kvstore.Store the tracker uses.
type Store interface {
	Get(ctx context.Context, path string, dst any) (bool, error)
	Set(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Watch(ctx context.Context, path string, fn kvstore.WatchFunc) (func(), error)
}

// Locator resolves an approximate location. It never fails.
type Locator interface {
	Locate(ctx context.Context, clientIP string) models.LocationInfo
}

// Deps are the collaborators of a Tracker.
type Deps struct {
	Store       Store
	Locator     Locator
	Sink        analytics.Sink
	Broadcaster Broadcaster

	// Fingerprinter builds the identity provider for a page load.
	// Defaults to fingerprint.NewProvider.
	Fingerprinter func(fingerprint.Hints) fingerprint.Provider

	Clock              Clock
	Location           *time.Location
	EngagementInterval time.Duration

	counts *liveCounts
}

func (d *Deps) setDefaults() {
	if d.Fingerprinter == nil {
		d.Fingerprinter = func(h fingerprint.Hints) fingerprint.Provider { return fingerprint.NewProvider(h) }
	}
	if d.Clock == nil {
		d.Clock = SystemClock()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.EngagementInterval <= 0 {
		d.EngagementInterval = DefaultEngagementInterval
	}
	if d.counts == nil {
		d.counts = newLiveCounts()
	}
}

// Hints describe one page load.
type Hints struct {
	Identity     fingerprint.Hints
	PageTitle    string
	PageLocation string
}

type unloadListener struct {
	name string
	fn   func(ctx context.Context) error
}

// Tracker does the visitor bookkeeping of one page load.
type Tracker struct {
	deps   Deps
	loadID string

	bgCtx  context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	initCalled   bool
	initialized  bool
	visitorID    string
	visitID      string
	date         string
	location     models.LocationInfo
	visit        *Visit
	listeners    []unloadListener
	stopWatch    func()
	stopped      bool
	lastActivity time.Time

	stopOnce sync.Once
}

// New creates a Tracker for one page load.
func New(loadID string, deps Deps) *Tracker {
	deps.setDefaults()

	bg := logging.ContextWithLoadID(context.Background(), loadID)
	bgCtx, cancel := context.WithCancel(bg)

	return &Tracker{
		deps:         deps,
		loadID:       loadID,
		bgCtx:        bgCtx,
		cancel:       cancel,
		lastActivity: deps.Clock.Now(),
	}
}

func (t *Tracker) now() time.Time {
	return t.deps.Clock.Now()
}

// Init identifies the visitor, resolves their location, reconciles the
// daily records, starts the visit and the background work, and emits
// page_view. It runs at most once.
func (t *Tracker) Init(ctx context.Context, hints Hints) error {
	t.mu.Lock()
	if t.initCalled {
		t.mu.Unlock()
		return ErrAlreadyInitialized
	}
	t.initCalled = true
	t.mu.Unlock()

	ctx = logging.ContextWithLoadID(ctx, t.loadID)
	log := logging.Ctx(ctx)
	log.Debug().Msg("Initializing tracking")

	loadTime := t.now()
	t.touch()

	res, err := fingerprint.Identify(ctx, t.deps.Fingerprinter(hints.Identity))
	if err != nil {
		metrics.RecordTrackerInit("fingerprint_failed")
		log.Error().Err(err).Msg("Error initializing tracking")
		return fmt.Errorf("identify visitor: %w", err)
	}
	visitorID := res.VisitorID
	log.Debug().Str("visitor_id", visitorID).Bool("derived", res.Derived).Msg("Unique browser fingerprint")

	location := t.deps.Locator.Locate(ctx, hints.Identity.ClientIP)

	date := loadTime.In(t.deps.Location).Format(models.DateLayout)
	outcome, sessionPath, err := t.reconcile(ctx, date, visitorID, location)
	if err != nil {
		metrics.RecordTrackerInit("store_failed")
		log.Error().Err(err).Msg("Error initializing tracking")
		return err
	}

	visitID := VisitID(loadTime)
	visitPath, err := kvstore.Join(models.PathVisits, date, visitID)
	if err != nil {
		metrics.RecordTrackerInit("store_failed")
		return err
	}
	visit := newVisit(t.deps.Store, t.deps.Clock, visitPath, visitorID, location)

	t.mu.Lock()
	t.visitorID = visitorID
	t.visitID = visitID
	t.date = date
	t.location = location
	t.visit = visit
	if sessionPath != "" {
		t.listeners = append(t.listeners, unloadListener{
			name: "release session marker",
			fn:   func(ctx context.Context) error { return t.deps.Store.Delete(ctx, sessionPath) },
		})
	}
	t.listeners = append(t.listeners, unloadListener{name: "end visit", fn: visit.End})
	t.mu.Unlock()

	if err := visit.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("Visit start failed")
	}

	if err := t.watchUniqueUsers(date); err != nil {
		log.Warn().Err(err).Msg("Live unique count unavailable")
	}

	_ = t.deps.Sink.LogEvent(ctx, models.EventPageView, analytics.Params{
		"page_title":    hints.PageTitle,
		"page_location": hints.PageLocation,
		"user_id":       visitorID,
	})

	t.startEngagement(t.now(), visitorID)

	t.mu.Lock()
	t.initialized = true
	t.mu.Unlock()

	metrics.RecordTrackerInit(string(outcome))
	log.Info().
		Str("visitor_id", visitorID).
		Str("visit_id", visitID).
		Str("outcome", string(outcome)).
		Str("country", location.Country).
		Msg("Tracking initialized")
	return nil
}

// HandleVisibility starts the visit on "visible" and ends it on "hidden".
// Other states, and calls before the visit exists, are ignored.
func (t *Tracker) HandleVisibility(ctx context.Context, state string) error {
	t.touch()
	t.mu.Lock()
	visit := t.visit
	t.mu.Unlock()
	if visit == nil {
		return nil
	}

	ctx = logging.ContextWithLoadID(ctx, t.loadID)
	switch state {
	case models.VisibilityVisible:
		return visit.Start(ctx)
	case models.VisibilityHidden:
		return visit.End(ctx)
	default:
		return nil
	}
}

// HandleMessage forwards an analytics message from the viewer as a
// gee_interaction event. It reports whether the message was forwarded.
func (t *Tracker) HandleMessage(ctx context.Context, msg models.ViewerMessage) bool {
	t.touch()
	t.mu.Lock()
	visitorID, ready := t.visitorID, t.initialized
	t.mu.Unlock()

	if !ready || msg.Type != models.ViewerMessageTypeAnalytics {
		return false
	}

	ctx = logging.ContextWithLoadID(ctx, t.loadID)
	_ = t.deps.Sink.LogEvent(ctx, models.EventGeeInteraction, analytics.Params{
		"action":   msg.Action,
		"category": msg.Category,
		"label":    labelOrEmpty(msg.Label),
		"user_id":  visitorID,
	})
	return true
}

// labelOrEmpty replaces a missing or falsy JSON label with "".
func labelOrEmpty(v any) any {
	switch l := v.(type) {
	case nil:
		return ""
	case bool:
		if !l {
			return ""
		}
	case string:
		return l
	case float64:
		if l == 0 {
			return ""
		}
	}
	return v
}

// Unload runs the unload listeners in registration order, then stops the
// tracker. Each listener is attempted once; failures are logged.
func (t *Tracker) Unload(ctx context.Context) {
	t.mu.Lock()
	listeners := t.listeners
	t.listeners = nil
	t.mu.Unlock()

	ctx = logging.ContextWithLoadID(ctx, t.loadID)
	for _, l := range listeners {
		if err := l.fn(ctx); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("listener", l.name).Msg("Unload listener failed")
		}
	}

	t.Stop()
}

// Stop ends the engagement timer and the live-count watch and waits for
// them. It does not touch stored records. Safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		t.cancel()

		t.mu.Lock()
		t.stopped = true
		stop := t.stopWatch
		t.stopWatch = nil
		t.mu.Unlock()
		if stop != nil {
			stop()
		}

		t.wg.Wait()
	})
}

// KeepAlive records that the page is still open. It defers reaping and
// changes nothing else.
func (t *Tracker) KeepAlive() {
	t.touch()
}

func (t *Tracker) touch() {
	now := t.now()
	t.mu.Lock()
	t.lastActivity = now
	t.mu.Unlock()
}

// LastActivity is the time of the most recent call into the tracker.
func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActivity
}

// LoadID returns the page-load id.
func (t *Tracker) LoadID() string { return t.loadID }

// VisitorID returns the fingerprint, empty before Init succeeds.
func (t *Tracker) VisitorID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visitorID
}

// VisitID returns the base-36 visit id, empty before Init succeeds.
func (t *Tracker) VisitID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visitID
}

// Date returns the date partition of this page load.
func (t *Tracker) Date() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.date
}

// Location returns the resolved location.
func (t *Tracker) Location() models.LocationInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.location
}

// Initialized reports whether Init completed.
func (t *Tracker) Initialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initialized
}

// VisitActive reports whether the visit record is currently held.
func (t *Tracker) VisitActive() bool {
	t.mu.Lock()
	visit := t.visit
	t.mu.Unlock()
	return visit != nil && visit.Active()
}
