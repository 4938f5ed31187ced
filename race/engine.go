package race

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/qbitrace/qbittorrent"
)

// Default engine tunables.
const (
	DefaultReannounceInterval = 5 * time.Second

	// TooManyRequestsDelay is the cooldown applied when a tracker
	// reports rate limiting. Trackers don't advertise their limits,
	// so this is a fixed grace period.
	TooManyRequestsDelay = 10 * time.Second
)

// DefaultUnregisteredMessages are tracker messages that mean the
// torrent is not (yet) known to the tracker, so reannouncing won't
// help and the torrent has to be rechecked or restarted instead.
var DefaultUnregisteredMessages = []string{"unregistered", "stream truncated"}

// Engine drives a single torrent toward a working tracker by
// repeatedly reannouncing until the tracker accepts it.
type Engine struct {
	client Client
	logger zerolog.Logger

	// MaxReannounce bounds the number of reannounce requests sent.
	// Zero means unlimited. Only genuine reannounce requests consume
	// an attempt; waits on updating or rate-limited trackers do not.
	MaxReannounce int

	// Interval is the delay between reannounce attempts.
	Interval time.Duration

	// CooldownDelay is the wait applied after a "too many requests"
	// tracker message.
	CooldownDelay time.Duration

	// UnregisteredMessages overrides the keyword list that identifies
	// an unregistered torrent.
	UnregisteredMessages []string
}

// NewEngine creates an Engine with default tunables.
func NewEngine(client Client, logger zerolog.Logger) *Engine {
	return &Engine{
		client:               client,
		logger:               logger,
		Interval:             DefaultReannounceInterval,
		CooldownDelay:        TooManyRequestsDelay,
		UnregisteredMessages: DefaultUnregisteredMessages,
	}
}

// ReannounceUntilWorking repeatedly prompts the torrent's trackers
// until at least one reports working. Returns false when the torrent
// vanished, was stopped, or the attempts were exhausted. Cancellation
// surfaces as the context error; the caller must still run its cleanup
// path in that case.
func (e *Engine) ReannounceUntilWorking(ctx context.Context, hash string) (bool, error) {
	count := 0
	for e.MaxReannounce == 0 || count < e.MaxReannounce {
		torrent, err := e.client.GetTorrent(ctx, hash)
		if err != nil {
			if errors.Is(err, qbittorrent.ErrTorrentNotFound) {
				e.logger.Error().Str("hash", hash).Msg("Aborting race, torrent no longer exists")
				return false, nil
			}
			return false, err
		}
		if torrent.IsPaused() {
			e.logger.Error().Str("torrent", torrent.Name).Msg("Aborting race, torrent has been stopped")
			return false, nil
		}

		if err := ctx.Err(); err != nil {
			e.logger.Info().Str("torrent", torrent.Name).Msg("Cancellation requested, stopping race")
			return false, err
		}

		trackers, err := e.client.GetTrackers(ctx, hash)
		if err != nil {
			return false, err
		}

		hasUpdating := false
		for _, tracker := range trackers {
			if tracker.Status == qbittorrent.TrackerStatusWorking {
				e.logger.Info().Str("torrent", torrent.Name).Msg("Torrent has at least 1 working tracker")
				return true, nil
			}
			if tracker.Status == qbittorrent.TrackerStatusUpdating {
				hasUpdating = true
			}
		}

		if hasUpdating {
			// Trackers mid-update should not be disturbed.
			e.logger.Debug().Str("torrent", torrent.Name).Msg("Waiting while trackers are updating")
			if err := Sleep(ctx, e.Interval); err != nil {
				return false, err
			}
			continue
		}

		handled, err := e.handleUnregistered(ctx, torrent, trackers)
		if err != nil {
			return false, err
		}
		if handled {
			continue
		}

		handled, err = e.handleTooManyRequests(ctx, torrent, trackers)
		if err != nil {
			return false, err
		}
		if handled {
			continue
		}

		working, err := e.reannounce(ctx, torrent)
		if err != nil {
			return false, err
		}
		if working {
			e.logger.Info().Str("torrent", torrent.Name).Msg("Torrent has at least 1 working tracker")
			return true, nil
		}

		count++
		e.logger.Info().
			Str("torrent", torrent.Name).
			Int("count", count).
			Int("max", e.MaxReannounce).
			Msg("Sent reannounce request")
		if err := Sleep(ctx, e.Interval); err != nil {
			return false, err
		}
	}

	e.logger.Info().Str("hash", hash).Msg("Giving up, still no working trackers")
	return false, nil
}

// handleUnregistered checks for tracker messages indicating the
// torrent is unknown to the tracker. A torrent with no data yet gets a
// recheck; one with progress gets a stop and start, as a recheck would
// needlessly re-verify downloaded data. Both make the tracker state
// move, so neither consumes a reannounce attempt.
func (e *Engine) handleUnregistered(ctx context.Context, torrent *qbittorrent.TorrentInfo, trackers []qbittorrent.Tracker) (bool, error) {
	for _, tracker := range trackers {
		if tracker.Status != qbittorrent.TrackerStatusNotWorking {
			continue
		}
		if !e.isUnregisteredMessage(tracker.Message) {
			continue
		}

		if torrent.Progress == 0 {
			e.logger.Info().
				Str("torrent", torrent.Name).
				Str("tracker", tracker.URL).
				Str("message", tracker.Message).
				Msg("Torrent is unregistered, forcing a recheck")
			if err := e.client.Recheck(ctx, torrent.Hash); err != nil {
				return false, err
			}
		} else {
			e.logger.Info().
				Str("torrent", torrent.Name).
				Str("tracker", tracker.URL).
				Str("message", tracker.Message).
				Msg("Torrent is unregistered, forcing a restart")
			if err := e.client.Stop(ctx, torrent.Hash); err != nil {
				return false, err
			}
			if err := e.client.Start(ctx, torrent.Hash); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}

// handleTooManyRequests waits out tracker rate limiting. The wait does
// not consume a reannounce attempt.
func (e *Engine) handleTooManyRequests(ctx context.Context, torrent *qbittorrent.TorrentInfo, trackers []qbittorrent.Tracker) (bool, error) {
	for _, tracker := range trackers {
		if tracker.Status != qbittorrent.TrackerStatusNotWorking && tracker.Status != qbittorrent.TrackerStatusUpdating {
			continue
		}
		if !strings.Contains(strings.ToLower(tracker.Message), "too many requests") {
			continue
		}

		e.logger.Info().
			Str("torrent", torrent.Name).
			Str("tracker", tracker.URL).
			Dur("delay", e.CooldownDelay).
			Msg("Tracker reported too many requests, delaying before trying again")
		if err := Sleep(ctx, e.CooldownDelay); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// reannounce sends one reannounce request, unless a tracker has gone
// working in the meantime. Returns whether a tracker reports working
// afterwards.
func (e *Engine) reannounce(ctx context.Context, torrent *qbittorrent.TorrentInfo) (bool, error) {
	trackers, err := e.client.GetTrackers(ctx, torrent.Hash)
	if err != nil {
		return false, err
	}
	if anyWorking(trackers) {
		e.logger.Info().Str("torrent", torrent.Name).Msg("Skipping reannounce, a tracker is already working")
		return true, nil
	}

	if err := e.client.Reannounce(ctx, torrent.Hash); err != nil {
		return false, err
	}

	trackers, err = e.client.GetTrackers(ctx, torrent.Hash)
	if err != nil {
		return false, err
	}
	for _, tracker := range trackers {
		if tracker.Status == qbittorrent.TrackerStatusDisabled {
			continue
		}
		e.logger.Debug().
			Str("tracker", tracker.URL).
			Str("status", tracker.Status.String()).
			Str("message", tracker.Message).
			Msg("Tracker status after reannounce")
	}
	return anyWorking(trackers), nil
}

func (e *Engine) isUnregisteredMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, keyword := range e.UnregisteredMessages {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

func anyWorking(trackers []qbittorrent.Tracker) bool {
	for _, tracker := range trackers {
		if tracker.Status == qbittorrent.TrackerStatusWorking {
			return true
		}
	}
	return false
}
