package race

import (
	"context"

	"github.com/s0up4200/qbitrace/qbittorrent"
)

// Client is the slice of the qBittorrent API the racing workflow
// consumes.
type Client interface {
	GetTorrents(ctx context.Context) ([]qbittorrent.TorrentInfo, error)
	GetTorrentsByHashes(ctx context.Context, hashes []string) ([]qbittorrent.TorrentInfo, error)
	GetTorrent(ctx context.Context, hash string) (*qbittorrent.TorrentInfo, error)
	GetTrackers(ctx context.Context, hash string) ([]qbittorrent.Tracker, error)
	Pause(ctx context.Context, hashes []string) error
	Resume(ctx context.Context, hashes []string) error
	Reannounce(ctx context.Context, hash string) error
	Recheck(ctx context.Context, hash string) error
	Stop(ctx context.Context, hash string) error
	Start(ctx context.Context, hash string) error
}

// Ledger records which torrents were paused on behalf of which event.
type Ledger interface {
	Save(ctx context.Context, eventID string, hashes []string) error
	ExclusivelyPaused(ctx context.Context, eventID string) ([]string, error)
	AllPausedHashes(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, eventID string) (int64, error)
}
