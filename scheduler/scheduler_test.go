package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchaccelerator-hub/shorts-scraper/discovery"
	"github.com/researchaccelerator-hub/shorts-scraper/model"
	"github.com/researchaccelerator-hub/shorts-scraper/store"
)

type fakeRunner struct{}

func (fakeRunner) DiscoverAll(context.Context) (discovery.Result, error) {
	return discovery.Result{}, nil
}

func (fakeRunner) ScanAllChannels(context.Context) (discovery.Result, error) {
	return discovery.Result{}, nil
}

func TestStartRegistersDefaultEntries(t *testing.T) {
	s := New(fakeRunner{}, store.NewMemoryStore())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Len(t, s.entries, 2)
}

func TestReloadRejectsInvalidExpression(t *testing.T) {
	s := New(fakeRunner{}, store.NewMemoryStore())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	err := s.Reload(model.CronTimes{Discover: "not a cron", Scan: "30 8 * * *"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid discover cron expression")

	// The old entries survive a failed reload.
	assert.Len(t, s.entries, 2)
}

func TestReloadSwapsEntries(t *testing.T) {
	s := New(fakeRunner{}, store.NewMemoryStore())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.Reload(model.CronTimes{Discover: "15 6 * * *", Scan: "45 9 * * *"}))
	assert.Len(t, s.entries, 2)
	assert.Len(t, s.cron.Entries(), 2)
}
