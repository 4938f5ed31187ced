package race

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/qbitrace/config"
	"github.com/s0up4200/qbitrace/filter"
	"github.com/s0up4200/qbitrace/qbittorrent"
)

const (
	// checkingPollInterval is how often the racing torrent's state is
	// polled while qBittorrent is still checking its data.
	checkingPollInterval = 100 * time.Millisecond

	// cleanupTimeout bounds the resume calls that run after the race
	// was cancelled, since the task's own context is already done.
	cleanupTimeout = 30 * time.Second
)

// Orchestrator composes the pause ledger, the reannounce engine and
// the qBittorrent client into the race, post-race, pause and unpause
// operations. It owns no persistent state of its own.
type Orchestrator struct {
	client   Client
	ledger   Ledger
	engine   *Engine
	logger   zerolog.Logger
	raceCfg  config.RaceConfig
	pauseCfg config.PauseConfig
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(client Client, ledger Ledger, engine *Engine, cfg *config.Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:   client,
		ledger:   ledger,
		engine:   engine,
		logger:   logger,
		raceCfg:  cfg.Race,
		pauseCfg: cfg.Pause,
	}
}

// Race pauses eligible torrents, then drives the racing torrent's
// trackers until one accepts it. On failure or cancellation the
// torrents paused by this run are resumed again; the paused set is
// persisted before any pause request goes out, so a crash in between
// leaves nothing untracked.
func (o *Orchestrator) Race(ctx context.Context, hash string) error {
	torrents, err := o.client.GetTorrents(ctx)
	if err != nil {
		return err
	}

	var racing *qbittorrent.TorrentInfo
	others := make([]qbittorrent.TorrentInfo, 0, len(torrents))
	for i := range torrents {
		if torrents[i].Hash == hash {
			racing = &torrents[i]
		} else {
			others = append(others, torrents[i])
		}
	}
	if racing == nil {
		o.logger.Error().Str("hash", hash).Msg("No torrent found with hash")
		return fmt.Errorf("%w: %s", qbittorrent.ErrTorrentNotFound, hash)
	}

	if len(o.raceCfg.Categories) > 0 {
		if racing.Category == "" {
			o.logger.Info().
				Str("torrent", racing.Name).
				Strs("race_categories", o.raceCfg.Categories).
				Msg("Not racing torrent, no category is set")
			return fmt.Errorf("%w: no category set", ErrNotEligible)
		}
		if !slices.Contains(o.raceCfg.Categories, racing.Category) {
			o.logger.Info().
				Str("torrent", racing.Name).
				Str("category", racing.Category).
				Strs("race_categories", o.raceCfg.Categories).
				Msg("Not racing torrent, category is not a race category")
			return fmt.Errorf("%w: category %q is not a race category", ErrNotEligible, racing.Category)
		}
	} else {
		o.logger.Info().Msg("No race categories are set, so all torrents are eligible for racing")
	}

	toPause, err := o.selectPauseSet(ctx, others)
	if err != nil {
		return err
	}

	// A freshly added torrent gets its data checked first; wait for
	// that to finish before looking at its state.
	for {
		current, err := o.client.GetTorrent(ctx, hash)
		if err != nil {
			if errors.Is(err, qbittorrent.ErrTorrentNotFound) {
				o.logger.Error().Str("hash", hash).Msg("No torrent found with hash")
			}
			return err
		}
		racing = current

		if err := ctx.Err(); err != nil {
			o.logger.Info().Str("torrent", racing.Name).Msg("Cancellation requested, stopping race")
			return err
		}

		if !racing.IsChecking() {
			break
		}
		o.logger.Debug().Str("torrent", racing.Name).Msg("Waiting while torrent is checking")
		if err := Sleep(ctx, checkingPollInterval); err != nil {
			return err
		}
	}

	if racing.IsPaused() {
		o.logger.Info().Str("torrent", racing.Name).Msg("Not racing torrent, it is paused/stopped")
		return fmt.Errorf("%w: torrent is paused", ErrNotEligible)
	}
	if racing.IsComplete() {
		o.logger.Info().Str("torrent", racing.Name).Msg("Not racing torrent, it is already complete")
		return fmt.Errorf("%w: torrent is already complete", ErrNotEligible)
	}

	// Persist before pausing: a pause that isn't recorded could never
	// be undone by post-race.
	if err := o.ledger.Save(ctx, hash, toPause); err != nil {
		return fmt.Errorf("failed to save pause event for %q: %w", racing.Name, err)
	}

	if len(toPause) > 0 {
		o.logger.Info().Int("count", len(toPause)).Msg("Pausing torrents before racing")
		if err := o.client.Pause(ctx, toPause); err != nil {
			return err
		}
	}

	working, err := o.engine.ReannounceUntilWorking(ctx, hash)
	if err != nil {
		o.cleanupResume(toPause)
		return err
	}
	if !working {
		o.resumeTorrents(ctx, toPause)
		return fmt.Errorf("%w: %s", ErrNoWorkingTracker, racing.Name)
	}

	o.logger.Info().Str("torrent", racing.Name).Msg("Racing complete")
	return nil
}

// selectPauseSet computes which torrents to pause on behalf of a race.
// Torrents in ignored categories are skipped first, then torrents that
// were paused outside this system. Of the rest, anything outside the
// race categories is paused, and torrents inside them are paused once
// their ratio reaches the configured threshold.
func (o *Orchestrator) selectPauseSet(ctx context.Context, torrents []qbittorrent.TorrentInfo) ([]string, error) {
	if !o.raceCfg.Pausing {
		o.logger.Info().Msg("Pausing is disabled, so no torrents will be paused")
		return nil, nil
	}

	tracked, err := o.ledger.AllPausedHashes(ctx)
	if err != nil {
		return nil, err
	}

	var toPause []string
	for _, t := range torrents {
		if slices.Contains(o.raceCfg.IgnoreCategories, t.Category) {
			o.logger.Debug().Str("torrent", t.Name).Str("category", t.Category).Msg("Ignoring torrent, category is ignored")
			continue
		}
		if t.IsPaused() && !slices.Contains(tracked, t.Hash) {
			// Paused by the user, not by us; leave it alone.
			o.logger.Info().Str("torrent", t.Name).Msg("Ignoring torrent, it is already paused")
			continue
		}
		if len(o.raceCfg.Categories) == 0 || !slices.Contains(o.raceCfg.Categories, t.Category) {
			o.logger.Info().
				Str("torrent", t.Name).
				Str("category", t.Category).
				Msg("Adding torrent to pause list, category is not a race category")
			toPause = append(toPause, t.Hash)
		} else if t.Ratio >= o.raceCfg.Ratio {
			o.logger.Info().
				Str("torrent", t.Name).
				Float64("ratio", t.Ratio).
				Float64("threshold", o.raceCfg.Ratio).
				Msg("Adding torrent to pause list, ratio is above threshold")
			toPause = append(toPause, t.Hash)
		}
	}
	return toPause, nil
}

// PostRace resumes the torrents that were paused exclusively for the
// given race and removes its ledger entry.
func (o *Orchestrator) PostRace(ctx context.Context, hash string) error {
	torrent, err := o.client.GetTorrent(ctx, hash)
	if err != nil {
		if errors.Is(err, qbittorrent.ErrTorrentNotFound) {
			o.logger.Error().Str("hash", hash).Msg("No torrent found with hash, so no post race actions can be run")
		}
		return err
	}

	toResume, err := o.ledger.ExclusivelyPaused(ctx, hash)
	if err != nil {
		return err
	}
	if err := o.resumeTorrents(ctx, toResume); err != nil {
		return err
	}

	deleted, err := o.ledger.Delete(ctx, hash)
	if err != nil {
		return err
	}
	if deleted > 0 {
		o.logger.Info().Str("torrent", torrent.Name).Msg("Deleted pause event")
	}

	o.logger.Info().Str("torrent", torrent.Name).Msg("Post race complete")
	return nil
}

// Pause pauses torrents that have been idle or active for longer than
// the configured thresholds, recording them under the given event id
// so Unpause can restore exactly this set later.
func (o *Orchestrator) Pause(ctx context.Context, eventID string) error {
	maxLastActivity, err := o.pauseCfg.MaxLastActivityDuration()
	if err != nil {
		return err
	}
	maxSeedingTime, err := o.pauseCfg.MaxSeedingTimeDuration()
	if err != nil {
		return err
	}

	var pauseFilter *filter.Filter
	if o.pauseCfg.Filter != "" {
		pauseFilter, err = filter.Compile(o.pauseCfg.Filter)
		if err != nil {
			return err
		}
	}

	if maxLastActivity == 0 && maxSeedingTime == 0 && pauseFilter == nil {
		o.logger.Error().Msg("No pause criteria configured")
		return fmt.Errorf("%w: no pause criteria configured", ErrNotEligible)
	}

	torrents, err := o.client.GetTorrents(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	var toPause []string
	for _, t := range torrents {
		if t.IsPaused() {
			continue
		}

		eligible := maxLastActivity == 0 && maxSeedingTime == 0
		if maxLastActivity > 0 && now.Sub(t.LastActivity) >= maxLastActivity {
			o.logger.Info().
				Str("torrent", t.Name).
				Time("last_activity", t.LastActivity).
				Msg("Adding torrent to pause list, idle for too long")
			eligible = true
		} else if maxSeedingTime > 0 && t.TimeActive >= maxSeedingTime {
			o.logger.Info().
				Str("torrent", t.Name).
				Dur("time_active", t.TimeActive).
				Msg("Adding torrent to pause list, active for too long")
			eligible = true
		}
		if !eligible {
			continue
		}

		if pauseFilter != nil {
			match, err := pauseFilter.Match(t)
			if err != nil {
				return fmt.Errorf("evaluating pause filter against %q: %w", t.Name, err)
			}
			if !match {
				continue
			}
		}

		toPause = append(toPause, t.Hash)
	}

	if err := o.ledger.Save(ctx, eventID, toPause); err != nil {
		return fmt.Errorf("failed to save pause event %q: %w", eventID, err)
	}

	if len(toPause) == 0 {
		o.logger.Info().Str("event_id", eventID).Msg("No torrents matched the pause criteria")
		return nil
	}

	o.logger.Info().Str("event_id", eventID).Int("count", len(toPause)).Msg("Pausing torrents")
	return o.client.Pause(ctx, toPause)
}

// Unpause resumes the torrents recorded under the given event id,
// except those still referenced by another live event, then removes
// the event.
func (o *Orchestrator) Unpause(ctx context.Context, eventID string) error {
	toResume, err := o.ledger.ExclusivelyPaused(ctx, eventID)
	if err != nil {
		return err
	}
	if err := o.resumeTorrents(ctx, toResume); err != nil {
		return err
	}

	deleted, err := o.ledger.Delete(ctx, eventID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		o.logger.Warn().Str("event_id", eventID).Msg("No pause event found with id")
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}

	o.logger.Info().Str("event_id", eventID).Msg("Unpause complete")
	return nil
}

// resumeTorrents resumes the given torrents, skipping and warning
// about any that no longer exist.
func (o *Orchestrator) resumeTorrents(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		o.logger.Info().Msg("No paused torrents to resume")
		return nil
	}

	o.logger.Info().Int("count", len(hashes)).Msg("Resuming previously paused torrents")

	existing, err := o.client.GetTorrentsByHashes(ctx, hashes)
	if err != nil {
		return err
	}
	found := make(map[string]bool, len(existing))
	for _, t := range existing {
		found[t.Hash] = true
	}

	toResume := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		if !found[hash] {
			o.logger.Warn().Str("hash", hash).Msg("No torrent found with hash, so it cannot be resumed")
			continue
		}
		toResume = append(toResume, hash)
	}

	return o.client.Resume(ctx, toResume)
}

// cleanupResume restores this run's paused torrents after the race was
// cancelled. The task context is already done at this point, so the
// resume calls run on their own bounded context.
func (o *Orchestrator) cleanupResume(hashes []string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := o.resumeTorrents(ctx, hashes); err != nil {
		o.logger.Error().Err(err).Msg("Failed to resume paused torrents during cleanup")
	}
}
