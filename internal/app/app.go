package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"ai-day-planner/internal/config"
	"ai-day-planner/internal/environment"
	"ai-day-planner/internal/events"
	"ai-day-planner/internal/llm"
	"ai-day-planner/internal/location"
	"ai-day-planner/internal/metrics"
	"ai-day-planner/internal/places"
	"ai-day-planner/internal/planner"
	"ai-day-planner/internal/queue"
)

const (
	venueLimit = 5
	eventLimit = 5
)

// App holds the application's dependencies and implements the user-facing
// flows: generate a plan, stop it, and the three modification paths.
type App struct {
	cfg          *config.Config
	requests     *queue.Queue
	resolver     *location.Resolver
	fetcher      *environment.Fetcher
	venues       *places.Searcher
	events       *events.Scraper
	gw           *llm.Gateway
	orchestrator *planner.Orchestrator
	metricsStore *metrics.Store

	mu     sync.Mutex
	coords location.CoordinateSource
}

// New creates and initializes an App instance. metricsStore may be nil when
// metrics are disabled.
func New(
	cfg *config.Config,
	requests *queue.Queue,
	resolver *location.Resolver,
	fetcher *environment.Fetcher,
	venues *places.Searcher,
	eventScraper *events.Scraper,
	gw *llm.Gateway,
	orchestrator *planner.Orchestrator,
	metricsStore *metrics.Store,
) *App {
	return &App{
		cfg:          cfg,
		requests:     requests,
		resolver:     resolver,
		fetcher:      fetcher,
		venues:       venues,
		events:       eventScraper,
		gw:           gw,
		orchestrator: orchestrator,
		metricsStore: metricsStore,
	}
}

// Gateway builds the shared model gateway for the configured provider.
func Gateway(ctx context.Context, cfg *config.Config, store *metrics.Store) (*llm.Gateway, error) {
	var gen llm.TextGenerator
	var err error
	switch cfg.Provider {
	case "gemini":
		gen, err = llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
	default:
		gen = llm.NewOpenAIClient(cfg)
	}
	opts := []llm.GatewayOption{
		llm.WithRetryConfig(llm.RetryConfig{
			MaxAttempts:    cfg.Tunables.ModelAttempts,
			BackoffBase:    config.Ms(cfg.Tunables.ModelRetryBaseMs),
			AttemptTimeout: config.Ms(cfg.Tunables.ModelTimeoutMs),
		}),
	}
	if store != nil {
		opts = append(opts, llm.WithMetaRecorder(store))
	}
	return llm.NewGateway(gen, opts...), nil
}

// SetCoordinates records coordinates reported by the user's device. The
// next location resolution will prefer them over IP lookup.
func (a *App) SetCoordinates(lat, lon float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.coords = location.FixedCoordinates(lat, lon)
}

func (a *App) coordinateSource() location.CoordinateSource {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.coords
}

// Plan runs the full generation flow: resolve location, fetch conditions,
// enrich with venues and events, then generate every block. Free-form
// instructions are folded into the preferences first. It blocks until the
// run settles.
func (a *App) Plan(ctx context.Context, instructions string) error {
	if a.orchestrator.IsGenerating() {
		return planner.ErrGenerationInProgress
	}

	loc := a.resolver.Resolve(ctx, a.coordinateSource())
	a.orchestrator.SetLocation(loc)
	log.Printf("planning for %s (source %s)", loc.City, loc.Source)

	// Preferences first: enrichment depends on them.
	if instructions != "" {
		delta := planner.ParseInstructions(ctx, a.gw, instructions)
		a.orchestrator.ApplyPreferences(delta)
	}
	a.prepare(ctx, loc)

	return a.orchestrator.Generate(ctx, nil)
}

// Stop aborts the active run and clears any queued lookups.
func (a *App) Stop() bool {
	stopped := a.orchestrator.Stop()
	if cleared := a.requests.Clear(); cleared > 0 {
		log.Printf("cleared %d queued requests", cleared)
	}
	return stopped
}

// ModifyAll folds new instructions into the preferences and regenerates
// every block, keeping the current location and conditions.
func (a *App) ModifyAll(ctx context.Context, instructions string) error {
	if a.orchestrator.IsGenerating() {
		return planner.ErrGenerationInProgress
	}
	delta := planner.ParseInstructions(ctx, a.gw, instructions)
	a.orchestrator.ApplyPreferences(delta)
	return a.orchestrator.Generate(ctx, nil)
}

// ModifyBlock folds new instructions into the preferences and regenerates
// a single block, leaving the rest of the plan untouched.
func (a *App) ModifyBlock(ctx context.Context, blockID int, instructions string) error {
	if a.orchestrator.IsGenerating() {
		return planner.ErrGenerationInProgress
	}
	if instructions != "" {
		delta := planner.ParseInstructions(ctx, a.gw, instructions)
		a.orchestrator.ApplyPreferences(delta)
	}
	return a.orchestrator.RegenerateBlock(ctx, blockID)
}

// ModifyLocation switches the plan to a named city and regenerates every
// block. If the city cannot be resolved the previous location is kept and
// the error is returned without touching the plan.
func (a *App) ModifyLocation(ctx context.Context, city string) error {
	if a.orchestrator.IsGenerating() {
		return planner.ErrGenerationInProgress
	}
	loc, err := a.resolver.ResolveCity(ctx, city)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", city, err)
	}
	a.orchestrator.SetLocation(loc)
	a.prepare(ctx, loc)
	return a.orchestrator.Generate(ctx, nil)
}

// prepare fetches environment conditions and enrichment data for a
// location. Every branch degrades independently; a failed lookup never
// blocks generation. Venue suggestions are only worth fetching when the
// user wants company, so a low social level skips the search and drops any
// venues carried over from a previous location.
func (a *App) prepare(ctx context.Context, loc location.Location) {
	snap := a.fetcher.Fetch(ctx, loc.Latitude, loc.Longitude, loc.City)
	a.orchestrator.SetEnvironment(snap)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if a.orchestrator.State().Preferences.SocialLevel == "low" {
			a.orchestrator.SetVenues(nil)
			return nil
		}
		vs, err := a.venues.Search(gctx, "cafe", loc.City, venueLimit)
		if err != nil {
			log.Printf("venue search failed: %v", err)
			return nil
		}
		a.orchestrator.SetVenues(vs)
		return nil
	})
	g.Go(func() error {
		evs, err := a.events.LocalEvents(gctx, loc.City, eventLimit)
		if err != nil {
			log.Printf("event lookup failed: %v", err)
			return nil
		}
		a.orchestrator.SetEvents(evs)
		return nil
	})
	_ = g.Wait()
}

// Status summarizes the app for health and status endpoints.
type Status struct {
	Run          planner.RunState `json:"run"`
	QueueWaiting int              `json:"queue_waiting"`
	QueueActive  int              `json:"queue_active"`
	City         string           `json:"city"`
}

// State returns the current plan state.
func (a *App) State() planner.PlanState {
	return a.orchestrator.State()
}

// GetStatus reports the run state and queue depth.
func (a *App) GetStatus() Status {
	st := a.orchestrator.State()
	qs := a.requests.Stats()
	return Status{
		Run:          st.Run,
		QueueWaiting: qs.Waiting,
		QueueActive:  qs.Processing,
		City:         st.Location.City,
	}
}

// Health reports process-level metrics.
func (a *App) Health() metrics.SysHealth {
	return metrics.GetSysHealth(a.cfg.MetricsDBPath)
}

// Close releases held resources.
func (a *App) Close() error {
	if a.metricsStore != nil {
		return a.metricsStore.Close()
	}
	return nil
}
