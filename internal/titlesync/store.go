// Package titlesync keeps an in-memory, newest-first collection of visible
// titles consistent with the remote titles table: one bulk load followed by a
// live change-event subscription.
package titlesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"cinehub/internal/gateway"
	"cinehub/internal/metrics"
	"cinehub/internal/models"
)

var (
	ErrAlreadySubscribed = errors.New("titles change feed already subscribed")
	ErrClosed            = errors.New("title store closed")
	ErrTitleNotFound     = errors.New("title not found")
)

// OutcomeReset is delivered to listeners when the whole collection was
// replaced by a load or a cache restore.
const OutcomeReset Outcome = "reset"

const (
	defaultLoadTimeout = 30 * time.Second
	cacheTimeout       = 5 * time.Second
	pendingLimit       = 4096
)

// SnapshotCache persists the last good collection for warm starts.
type SnapshotCache interface {
	Save(ctx context.Context, titles []models.Title) error
	Load(ctx context.Context) ([]models.Title, time.Time, error)
}

// Listener receives every applied change. It runs on the store's consumer
// goroutine and must not block for long.
type Listener func(Delta)

// Status is a point-in-time view of the store's health.
type Status struct {
	Ready       bool      `json:"ready"`
	Stale       bool      `json:"stale"`
	Loading     bool      `json:"loading"`
	Subscribed  bool      `json:"subscribed"`
	Connected   bool      `json:"connected"`
	Titles      int       `json:"titles"`
	Retryable   bool      `json:"retryable"`
	LastError   string    `json:"last_error,omitempty"`
	LoadedAt    time.Time `json:"loaded_at"`
	LastEventAt time.Time `json:"last_event_at"`
	Buffered    int       `json:"buffered"`
	Err         error     `json:"-"`
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSnapshotCache(c SnapshotCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithReconnect re-subscribes after a dropped feed, at most once per every,
// and resynchronizes with a fresh load.
func WithReconnect(every time.Duration) Option {
	return func(s *Store) {
		s.reconnect = true
		s.limiter = rate.NewLimiter(rate.Every(every), 1)
	}
}

func WithLoadTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

// Store owns the title collection. Reads return copies taken under the
// mutex, so they never observe a half-applied event.
type Store struct {
	gw          gateway.Gateway
	logger      *slog.Logger
	cache       SnapshotCache
	reconnect   bool
	limiter     *rate.Limiter
	loadTimeout time.Duration
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	loads  singleflight.Group

	mu        sync.Mutex
	titles    []models.Title
	status    Status
	reloads   int
	pending   []gateway.ChangeEvent
	listeners map[int]Listener
	nextID    int

	subMu      sync.Mutex
	sub        gateway.Subscription
	subscribed bool
	closed     bool
	closeOnce  sync.Once
	closeErr   error
}

func NewStore(gw gateway.Gateway, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		gw:          gw,
		logger:      slog.Default(),
		loadTimeout: defaultLoadTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		ctx:         ctx,
		cancel:      cancel,
		titles:      []models.Title{},
		listeners:   make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize performs the bulk load of completed titles, newest first.
// Concurrent callers share a single in-flight load and all observe its
// result. The load itself is bounded by the store's lifetime, not by any one
// caller's context; ctx only limits how long this caller waits.
//
// On failure the previous collection is kept. If there has never been one
// and a snapshot cache is configured, the cached snapshot is served and the
// status is marked stale.
func (s *Store) Initialize(ctx context.Context) error {
	ch := s.loads.DoChan("titles", func() (any, error) {
		return nil, s.load()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) load() error {
	if err := s.ctx.Err(); err != nil {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.loadTimeout)
	defer cancel()

	s.mu.Lock()
	s.reloads++
	s.status.Loading = true
	s.mu.Unlock()

	start := time.Now()
	rows, err := s.gw.List(ctx, models.TableTitles,
		gateway.Filter{"status": string(models.StatusCompleted)},
		gateway.ListOptions{OrderBy: []gateway.Order{{Column: "created_at", Desc: true}}},
	)
	metrics.InitializeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return s.loadFailed(err)
	}

	titles := make([]models.Title, 0, len(rows))
	for _, row := range rows {
		t := models.FromRow(row)
		if t.ID == "" || !t.Visible() {
			s.logger.Warn("initialize_row_skipped", "id", t.ID, "status", t.Status)
			continue
		}
		titles = append(titles, t)
	}

	s.mu.Lock()
	s.reloads--
	replayed := len(s.pending)
	titles = s.replayLocked(titles)
	s.titles = titles
	s.status.Ready = true
	s.status.Stale = false
	s.status.Loading = s.reloads > 0
	s.status.Err = nil
	s.status.LastError = ""
	s.status.Retryable = false
	s.status.LoadedAt = s.now()
	s.status.Titles = len(titles)
	listeners := s.listenerListLocked()
	s.mu.Unlock()

	metrics.TitlesVisible.Set(float64(len(titles)))
	s.logger.Info("titles_initialized", "count", len(titles), "replayed", replayed, "duration", time.Since(start))
	notify(listeners, Delta{Outcome: OutcomeReset})

	if s.cache != nil {
		cctx, ccancel := context.WithTimeout(s.ctx, cacheTimeout)
		defer ccancel()
		if err := s.cache.Save(cctx, titles); err != nil {
			s.logger.Warn("snapshot_cache_save_failed", "error", err)
		}
	}
	return nil
}

func (s *Store) loadFailed(cause error) error {
	metrics.InitializeFailures.Inc()
	err := fmt.Errorf("initialize titles: %w", cause)

	s.mu.Lock()
	s.reloads--
	s.status.Loading = s.reloads > 0
	s.status.Err = err
	s.status.LastError = err.Error()
	s.status.Retryable = true
	hasSnapshot := s.status.Ready
	if hasSnapshot && s.reloads == 0 {
		// events received meanwhile were already applied live
		s.pending = nil
	}
	s.mu.Unlock()

	s.logger.Error("initialize_failed", "error", cause, "has_snapshot", hasSnapshot)
	if !hasSnapshot && s.cache != nil {
		s.restoreFromCache()
	}
	return err
}

// restoreFromCache gets its own deadline: the load's may already be spent.
func (s *Store) restoreFromCache() {
	ctx, cancel := context.WithTimeout(s.ctx, cacheTimeout)
	defer cancel()
	cached, savedAt, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.Warn("snapshot_cache_unavailable", "error", err)
		return
	}

	s.mu.Lock()
	if s.status.Ready {
		s.mu.Unlock()
		return
	}
	titles := s.replayLocked(cached)
	s.titles = titles
	s.status.Ready = true
	s.status.Stale = true
	s.status.LoadedAt = savedAt
	s.status.Titles = len(titles)
	listeners := s.listenerListLocked()
	s.mu.Unlock()

	metrics.TitlesVisible.Set(float64(len(titles)))
	s.logger.Warn("serving_cached_snapshot", "count", len(titles), "saved_at", savedAt)
	notify(listeners, Delta{Outcome: OutcomeReset})
}

// replayLocked applies buffered events on top of titles and clears the buffer.
func (s *Store) replayLocked(titles []models.Title) []models.Title {
	for _, ev := range s.pending {
		titles, _ = Apply(titles, ev)
	}
	s.pending = nil
	s.status.Buffered = 0
	return titles
}

func (s *Store) bufferLocked(ev gateway.ChangeEvent) {
	if len(s.pending) >= pendingLimit {
		s.logger.Warn("title_event_buffer_full", "limit", pendingLimit)
		s.pending = s.pending[1:]
	}
	s.pending = append(s.pending, ev)
	s.status.Buffered = len(s.pending)
}

// SubscribeToChanges opens the store's single change-event subscription and
// starts consuming it. Calling it a second time returns ErrAlreadySubscribed.
//
// With reconnect enabled a failed first attempt is still returned, but the
// consumer is started anyway and keeps subscribing in the background.
func (s *Store) SubscribeToChanges(ctx context.Context) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.subscribed {
		return ErrAlreadySubscribed
	}

	sub, err := s.gw.Subscribe(ctx, models.TableTitles)
	if err != nil {
		err = fmt.Errorf("subscribe to titles: %w", err)
		if !s.reconnect {
			return err
		}
		s.subscribed = true

		s.mu.Lock()
		s.status.Subscribed = true
		s.status.Connected = false
		s.status.Err = err
		s.status.LastError = err.Error()
		s.status.Retryable = true
		s.mu.Unlock()

		s.logger.Warn("titles_subscribe_failed", "error", err, "retrying", true)
		s.wg.Add(1)
		go s.consume(nil)
		return err
	}
	s.sub = sub
	s.subscribed = true

	s.mu.Lock()
	s.status.Subscribed = true
	s.status.Connected = true
	s.mu.Unlock()

	s.logger.Info("titles_subscribed", "subscription_id", sub.ID())
	s.wg.Add(1)
	go s.consume(sub)
	return nil
}

// consume drains sub until it ends. A nil sub means the feed is down and
// has to be re-opened first.
func (s *Store) consume(sub gateway.Subscription) {
	defer s.wg.Done()
	for {
		if sub == nil {
			if sub = s.resubscribe(); sub == nil {
				return
			}
			s.resync()
		}
		if s.drain(sub) {
			return
		}

		cause := sub.Err()
		s.mu.Lock()
		s.status.Connected = false
		if cause != nil {
			s.status.Err = cause
			s.status.LastError = cause.Error()
			s.status.Retryable = true
		}
		s.mu.Unlock()
		s.logger.Warn("titles_feed_disconnected", "subscription_id", sub.ID(), "error", cause)

		if !s.reconnect {
			return
		}
		sub = nil
	}
}

// resync reloads the collection in the background; events missed while the
// feed was down only show up in a fresh load.
func (s *Store) resync() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Initialize(s.ctx); err != nil {
			s.logger.Warn("titles_resync_failed", "error", err)
		}
	}()
}

// drain handles events until the subscription ends. It reports true when the
// store is shutting down.
func (s *Store) drain(sub gateway.Subscription) bool {
	for {
		select {
		case <-s.ctx.Done():
			return true
		case ev, ok := <-sub.Events():
			if !ok {
				return s.ctx.Err() != nil
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Store) resubscribe() gateway.Subscription {
	for {
		if err := s.limiter.Wait(s.ctx); err != nil {
			return nil
		}
		sub, err := s.gw.Subscribe(s.ctx, models.TableTitles)
		if err != nil {
			metrics.Resyncs.WithLabelValues("failed").Inc()
			if errors.Is(err, gateway.ErrClosed) || s.ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("titles_resubscribe_failed", "error", err)
			continue
		}

		s.subMu.Lock()
		if s.closed {
			s.subMu.Unlock()
			sub.Close()
			return nil
		}
		s.sub = sub
		s.subMu.Unlock()

		s.mu.Lock()
		s.status.Connected = true
		s.mu.Unlock()

		metrics.Resyncs.WithLabelValues("ok").Inc()
		s.logger.Info("titles_resubscribed", "subscription_id", sub.ID())
		return sub
	}
}

func (s *Store) handleEvent(ev gateway.ChangeEvent) {
	s.mu.Lock()
	s.status.LastEventAt = s.now()
	if !s.status.Ready {
		s.bufferLocked(ev)
		s.mu.Unlock()
		metrics.TitleEvents.WithLabelValues(string(ev.Type), "buffered").Inc()
		return
	}
	if s.reloads > 0 {
		// replayed on top of the snapshot the reload produces
		s.bufferLocked(ev)
	}

	next, d := Apply(s.titles, ev)
	var listeners []Listener
	if d.Outcome.Changed() {
		s.titles = next
		s.status.Titles = len(next)
		listeners = s.listenerListLocked()
	}
	count := len(s.titles)
	s.mu.Unlock()

	metrics.TitleEvents.WithLabelValues(string(ev.Type), string(d.Outcome)).Inc()
	switch {
	case d.Outcome == OutcomeDropped:
		s.logger.Warn("title_event_dropped", "type", ev.Type, "table", ev.Table)
	case d.Outcome.Changed():
		metrics.TitlesVisible.Set(float64(count))
		d.Title = d.Title.Clone()
		notify(listeners, d)
	}
}

// Close releases the subscription exactly once and waits for the consumer
// to exit. Later calls are no-ops.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.subMu.Lock()
		s.closed = true
		sub := s.sub
		s.sub = nil
		s.subMu.Unlock()

		s.cancel()
		if sub != nil {
			s.closeErr = sub.Close()
		}
		s.wg.Wait()

		s.mu.Lock()
		s.status.Subscribed = false
		s.status.Connected = false
		s.mu.Unlock()
		s.logger.Info("title_store_closed")
	})
	return s.closeErr
}

// AddListener registers fn for every applied change and returns a function
// that unregisters it.
func (s *Store) AddListener(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) listenerListLocked() []Listener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}

func notify(listeners []Listener, d Delta) {
	for _, fn := range listeners {
		fn(d)
	}
}

// Status returns the store's current status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns the collection in display order. The slice is a copy; the
// titles inside share backing arrays with the store and are read-only.
func (s *Store) Snapshot() []models.Title {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Title, len(s.titles))
	copy(out, s.titles)
	return out
}

// Get returns a deep copy of one visible title.
func (s *Store) Get(id string) (models.Title, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := indexOf(s.titles, id); idx >= 0 {
		return s.titles[idx].Clone(), true
	}
	return models.Title{}, false
}

// Fetch returns a title from the collection or, failing that, straight from
// the gateway. Titles that are not completed are reported as not found.
func (s *Store) Fetch(ctx context.Context, id string) (models.Title, error) {
	if t, ok := s.Get(id); ok {
		return t, nil
	}
	row, err := s.gw.GetOne(ctx, models.TableTitles, gateway.Filter{"id": id})
	if err != nil {
		return models.Title{}, fmt.Errorf("fetch title %s: %w", id, err)
	}
	if row == nil {
		return models.Title{}, ErrTitleNotFound
	}
	t := models.FromRow(row)
	if !t.Visible() {
		return models.Title{}, ErrTitleNotFound
	}
	return t, nil
}

// Trending returns titles with a trending score, highest first.
func (s *Store) Trending(limit int) []models.Title {
	var out []models.Title
	for _, t := range s.Snapshot() {
		if t.TrendingScore != nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].TrendingScore > *out[j].TrendingScore
	})
	return truncate(out, limit)
}

// TopRated returns rated titles by mean rating, then by number of ratings.
func (s *Store) TopRated(limit int) []models.Title {
	var out []models.Title
	for _, t := range s.Snapshot() {
		if t.RatingCount > 0 {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].RatingCount > out[j].RatingCount
	})
	return truncate(out, limit)
}

// ByType filters the collection by kind, keeping display order.
func (s *Store) ByType(kind models.TitleType, limit int) []models.Title {
	var out []models.Title
	for _, t := range s.Snapshot() {
		if t.Type == kind {
			out = append(out, t)
		}
	}
	return truncate(out, limit)
}

// Search matches query case-insensitively against the name, logline, genres
// and tags.
func (s *Store) Search(query string, limit int) []models.Title {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.Title{}
	if q == "" {
		return out
	}
	for _, t := range s.Snapshot() {
		if matchesQuery(t, q) {
			out = append(out, t)
		}
	}
	return truncate(out, limit)
}

func matchesQuery(t models.Title, q string) bool {
	if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Logline), q) {
		return true
	}
	for _, g := range t.Genres {
		if strings.Contains(strings.ToLower(g), q) {
			return true
		}
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func truncate(titles []models.Title, limit int) []models.Title {
	if titles == nil {
		titles = []models.Title{}
	}
	if limit > 0 && len(titles) > limit {
		return titles[:limit]
	}
	return titles
}
