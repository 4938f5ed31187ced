package race

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/qbitrace/config"
	"github.com/s0up4200/qbitrace/ledger"
	"github.com/s0up4200/qbitrace/qbittorrent"
)

func testConfig() *config.Config {
	return &config.Config{
		Race: config.RaceConfig{
			Categories:         []string{"race"},
			Ratio:              1.0,
			ReannounceInterval: time.Millisecond,
			Pausing:            true,
		},
	}
}

func openRaceLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func newTestOrchestrator(client *fakeClient, led Ledger, cfg *config.Config) *Orchestrator {
	engine := NewEngine(client, zerolog.Nop())
	engine.Interval = time.Millisecond
	engine.MaxReannounce = cfg.Race.MaxReannounce
	return NewOrchestrator(client, led, engine, cfg, zerolog.Nop())
}

// The torrents from the pausing scenario: X races in category "race"
// with a ratio threshold of 1.0; A has no category and B has reached
// the threshold, so both are paused; C is below the threshold inside
// the race category and keeps running.
func scenarioTorrents() []qbittorrent.TorrentInfo {
	return []qbittorrent.TorrentInfo{
		{Hash: "xxx", Name: "X", Category: "race", State: "downloading", Progress: 0.2},
		{Hash: "aaa", Name: "A", Category: "", Ratio: 0.5, State: "uploading"},
		{Hash: "bbb", Name: "B", Category: "race", Ratio: 2.0, State: "uploading"},
		{Hash: "ccc", Name: "C", Category: "race", Ratio: 0.5, State: "uploading"},
	}
}

func TestRacePausesEligibleTorrents(t *testing.T) {
	client := &fakeClient{
		torrents:      scenarioTorrents(),
		trackerScript: [][]qbittorrent.Tracker{{working()}},
	}
	led := openRaceLedger(t)
	o := newTestOrchestrator(client, led, testConfig())

	require.NoError(t, o.Race(context.Background(), "xxx"))

	events, err := led.List(context.Background())
	require.NoError(t, err)
	require.Contains(t, events, "xxx")
	assert.ElementsMatch(t, []string{"aaa", "bbb"}, events["xxx"])

	require.Len(t, client.pauseCalls, 1)
	assert.ElementsMatch(t, []string{"aaa", "bbb"}, client.pauseCalls[0])
	assert.Empty(t, client.resumeCalls, "successful race must not resume anything")
}

func TestRaceIgnoredCategorySkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Race.IgnoreCategories = []string{"keep-seeding"}

	torrents := scenarioTorrents()
	torrents = append(torrents, qbittorrent.TorrentInfo{
		Hash: "ddd", Name: "D", Category: "keep-seeding", Ratio: 5.0, State: "uploading",
	})

	client := &fakeClient{
		torrents:      torrents,
		trackerScript: [][]qbittorrent.Tracker{{working()}},
	}
	led := openRaceLedger(t)
	o := newTestOrchestrator(client, led, cfg)

	require.NoError(t, o.Race(context.Background(), "xxx"))

	events, err := led.List(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, events["xxx"], "ddd")
}

func TestRaceManuallyPausedTorrentLeftAlone(t *testing.T) {
	torrents := scenarioTorrents()
	// ddd was paused by the user, not by us; it must not be touched.
	torrents = append(torrents, qbittorrent.TorrentInfo{
		Hash: "ddd", Name: "D", State: "pausedUP",
	})

	client := &fakeClient{
		torrents:      torrents,
		trackerScript: [][]qbittorrent.Tracker{{working()}},
	}
	led := openRaceLedger(t)
	o := newTestOrchestrator(client, led, testConfig())

	require.NoError(t, o.Race(context.Background(), "xxx"))

	events, err := led.List(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, events["xxx"], "ddd")
}

func TestRaceWaitsForCheckingToFinish(t *testing.T) {
	client := &fakeClient{
		torrents: scenarioTorrents(),
		stateQueue: map[string][]string{
			"xxx": {"checkingDL", "checkingDL", "downloading"},
		},
		trackerScript: [][]qbittorrent.Tracker{{working()}},
	}
	led := openRaceLedger(t)
	o := newTestOrchestrator(client, led, testConfig())

	require.NoError(t, o.Race(context.Background(), "xxx"))
	require.Len(t, client.pauseCalls, 1)
}

func TestRaceNotEligible(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*qbittorrent.TorrentInfo)
	}{
		{
			name:   "racing torrent paused",
			mutate: func(t *qbittorrent.TorrentInfo) { t.State = "pausedDL" },
		},
		{
			name:   "racing torrent complete",
			mutate: func(t *qbittorrent.TorrentInfo) { t.State = "uploading"; t.Progress = 1.0 },
		},
		{
			name:   "wrong category",
			mutate: func(t *qbittorrent.TorrentInfo) { t.Category = "linux-isos" },
		},
		{
			name:   "no category",
			mutate: func(t *qbittorrent.TorrentInfo) { t.Category = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			torrents := scenarioTorrents()
			tt.mutate(&torrents[0])

			client := &fakeClient{
				torrents:      torrents,
				trackerScript: [][]qbittorrent.Tracker{{working()}},
			}
			led := openRaceLedger(t)
			o := newTestOrchestrator(client, led, testConfig())

			err := o.Race(context.Background(), "xxx")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotEligible))
			assert.Empty(t, client.pauseCalls, "ineligible race must have no side effects")
		})
	}
}

func TestRaceUnknownHash(t *testing.T) {
	client := &fakeClient{torrents: scenarioTorrents()}
	o := newTestOrchestrator(client, openRaceLedger(t), testConfig())

	err := o.Race(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, qbittorrent.ErrTorrentNotFound))
}

func TestRaceStorageFailureAbortsBeforePausing(t *testing.T) {
	client := &fakeClient{
		torrents:      scenarioTorrents(),
		trackerScript: [][]qbittorrent.Tracker{{working()}},
	}
	led := &fakeLedger{saveErr: errors.New("disk full")}
	o := newTestOrchestrator(client, led, testConfig())

	err := o.Race(context.Background(), "xxx")
	require.Error(t, err)
	assert.Empty(t, client.pauseCalls, "nothing may be paused when the ledger save failed")
}

func TestRaceGivingUpResumesPausedTorrents(t *testing.T) {
	cfg := testConfig()
	cfg.Race.MaxReannounce = 2

	client := &fakeClient{
		torrents:      scenarioTorrents(),
		trackerScript: [][]qbittorrent.Tracker{{notContacted()}},
	}
	led := openRaceLedger(t)
	o := newTestOrchestrator(client, led, cfg)

	err := o.Race(context.Background(), "xxx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoWorkingTracker))

	require.Len(t, client.pauseCalls, 1)
	require.Len(t, client.resumeCalls, 1)
	assert.ElementsMatch(t, client.pauseCalls[0], client.resumeCalls[0])
}

func TestRaceCancellationResumesPausedTorrents(t *testing.T) {
	client := &fakeClient{
		torrents:      scenarioTorrents(),
		trackerScript: [][]qbittorrent.Tracker{{updating()}},
	}
	led := openRaceLedger(t)
	o := newTestOrchestrator(client, led, testConfig())
	o.engine.Interval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(75*time.Millisecond, cancel)

	err := o.Race(ctx, "xxx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	require.Len(t, client.pauseCalls, 1)
	require.Len(t, client.resumeCalls, 1)
	assert.ElementsMatch(t, client.pauseCalls[0], client.resumeCalls[0])
}

func TestPostRaceSkipsSharedTorrents(t *testing.T) {
	client := &fakeClient{torrents: scenarioTorrents()}
	led := openRaceLedger(t)
	ctx := context.Background()

	// bbb is also paused on behalf of event yyy, so post-race for xxx
	// must leave it paused.
	require.NoError(t, led.Save(ctx, "xxx", []string{"aaa", "bbb"}))
	require.NoError(t, led.Save(ctx, "yyy", []string{"bbb"}))

	o := newTestOrchestrator(client, led, testConfig())
	require.NoError(t, o.PostRace(ctx, "xxx"))

	require.Len(t, client.resumeCalls, 1)
	assert.Equal(t, []string{"aaa"}, client.resumeCalls[0])

	events, err := led.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, events, "xxx")
	assert.Contains(t, events, "yyy")
}

func TestPostRaceWarnsOnMissingTorrents(t *testing.T) {
	// aaa no longer exists remotely; only bbb can be resumed.
	client := &fakeClient{torrents: []qbittorrent.TorrentInfo{
		{Hash: "xxx", Name: "X", Category: "race", State: "uploading", Progress: 1.0},
		{Hash: "bbb", Name: "B", State: "pausedUP"},
	}}
	led := openRaceLedger(t)
	ctx := context.Background()
	require.NoError(t, led.Save(ctx, "xxx", []string{"aaa", "bbb"}))

	o := newTestOrchestrator(client, led, testConfig())
	require.NoError(t, o.PostRace(ctx, "xxx"))

	require.Len(t, client.resumeCalls, 1)
	assert.Equal(t, []string{"bbb"}, client.resumeCalls[0])
}

func TestPostRaceUnknownTorrent(t *testing.T) {
	client := &fakeClient{}
	o := newTestOrchestrator(client, openRaceLedger(t), testConfig())

	err := o.PostRace(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, qbittorrent.ErrTorrentNotFound))
}

func TestPauseByIdleThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Pause.MaxLastActivity = "1h"

	now := time.Now()
	client := &fakeClient{torrents: []qbittorrent.TorrentInfo{
		{Hash: "idle", Name: "idle", State: "uploading", LastActivity: now.Add(-2 * time.Hour)},
		{Hash: "busy", Name: "busy", State: "uploading", LastActivity: now},
		{Hash: "off", Name: "off", State: "pausedUP", LastActivity: now.Add(-3 * time.Hour)},
	}}
	led := openRaceLedger(t)
	o := newTestOrchestrator(client, led, cfg)

	ctx := context.Background()
	require.NoError(t, o.Pause(ctx, "nightly"))

	require.Len(t, client.pauseCalls, 1)
	assert.Equal(t, []string{"idle"}, client.pauseCalls[0])

	events, err := led.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"idle"}, events["nightly"])
}

func TestPauseByActiveThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Pause.MaxSeedingTime = "1w"

	now := time.Now()
	client := &fakeClient{torrents: []qbittorrent.TorrentInfo{
		{Hash: "old", Name: "old", State: "uploading", LastActivity: now, TimeActive: 8 * 24 * time.Hour},
		{Hash: "new", Name: "new", State: "uploading", LastActivity: now, TimeActive: time.Hour},
	}}
	o := newTestOrchestrator(client, openRaceLedger(t), cfg)

	require.NoError(t, o.Pause(context.Background(), "cleanup"))

	require.Len(t, client.pauseCalls, 1)
	assert.Equal(t, []string{"old"}, client.pauseCalls[0])
}

func TestPauseByFilterOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Pause.Filter = `Category == "archive"`

	client := &fakeClient{torrents: []qbittorrent.TorrentInfo{
		{Hash: "arc", Name: "arc", Category: "archive", State: "uploading"},
		{Hash: "cur", Name: "cur", Category: "current", State: "uploading"},
	}}
	o := newTestOrchestrator(client, openRaceLedger(t), cfg)

	require.NoError(t, o.Pause(context.Background(), "archive"))

	require.Len(t, client.pauseCalls, 1)
	assert.Equal(t, []string{"arc"}, client.pauseCalls[0])
}

func TestPauseWithoutCriteria(t *testing.T) {
	client := &fakeClient{}
	o := newTestOrchestrator(client, openRaceLedger(t), testConfig())

	err := o.Pause(context.Background(), "pause")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotEligible))
}

func TestUnpauseResumesAndDeletes(t *testing.T) {
	client := &fakeClient{torrents: []qbittorrent.TorrentInfo{
		{Hash: "aaa", Name: "A", State: "pausedUP"},
	}}
	led := openRaceLedger(t)
	ctx := context.Background()
	require.NoError(t, led.Save(ctx, "pause", []string{"aaa"}))

	o := newTestOrchestrator(client, led, testConfig())
	require.NoError(t, o.Unpause(ctx, "pause"))

	require.Len(t, client.resumeCalls, 1)
	assert.Equal(t, []string{"aaa"}, client.resumeCalls[0])

	events, err := led.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUnpauseUnknownEvent(t *testing.T) {
	client := &fakeClient{}
	o := newTestOrchestrator(client, openRaceLedger(t), testConfig())

	err := o.Unpause(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEventNotFound))
}
