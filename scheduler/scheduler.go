// Package scheduler drives the daily discovery and channel-scan runs from
// cron expressions stored in the settings document. Reload swaps the
// entries in place so an API settings update takes effect without a
// restart.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/researchaccelerator-hub/shorts-scraper/discovery"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
)

// Runner exposes the two scheduled pipeline entry points, satisfied by
// *discovery.Service.
type Runner interface {
	DiscoverAll(ctx context.Context) (discovery.Result, error)
	ScanAllChannels(ctx context.Context) (discovery.Result, error)
}

// Scheduler owns the cron instance and the two registered entries.
type Scheduler struct {
	runner Runner
	store  store.Store
	cron   *cron.Cron

	mu      sync.Mutex
	entries []cron.EntryID
}

// New builds a scheduler with the standard 5-field cron parser and panic
// recovery around job funcs.
func New(runner Runner, st store.Store) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		runner: runner,
		store:  st,
		cron:   cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}
}

// Start registers the entries from the current settings and starts the
// cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings for scheduler: %w", err)
	}
	if err := s.register(settings.CronTimes); err != nil {
		return err
	}

	s.cron.Start()
	log.Info().
		Str("discover", settings.CronTimes.Discover).
		Str("scan", settings.CronTimes.Scan).
		Msg("Scheduler started")
	return nil
}

// Reload replaces the registered entries with the given cron times. Called
// by the API after a settings update.
func (s *Scheduler) Reload(times model.CronTimes) error {
	if err := s.register(times); err != nil {
		return err
	}
	log.Info().
		Str("discover", times.Discover).
		Str("scan", times.Scan).
		Msg("Scheduler reloaded")
	return nil
}

// Stop halts the cron loop and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) register(times model.CronTimes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	discoverID, err := s.cron.AddFunc(times.Discover, func() { s.run("discover", s.runner.DiscoverAll) })
	if err != nil {
		return fmt.Errorf("invalid discover cron expression %q: %w", times.Discover, err)
	}
	scanID, err := s.cron.AddFunc(times.Scan, func() { s.run("scan", s.runner.ScanAllChannels) })
	if err != nil {
		s.cron.Remove(discoverID)
		return fmt.Errorf("invalid scan cron expression %q: %w", times.Scan, err)
	}

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = []cron.EntryID{discoverID, scanID}
	return nil
}

func (s *Scheduler) run(name string, fn func(context.Context) (discovery.Result, error)) {
	log.Info().Str("job", name).Msg("Scheduled run starting")
	if _, err := fn(context.Background()); err != nil {
		log.Error().Err(err).Str("job", name).Msg("Scheduled run failed")
	}
}
