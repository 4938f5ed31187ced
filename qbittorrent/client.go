package qbittorrent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
)

// Client wraps the qBittorrent API client
type Client struct {
	client *qbittorrent.Client
	logger zerolog.Logger
}

// NewClient creates a new qBittorrent client and verifies the
// connection by logging in.
func NewClient(host, username, password string, logger zerolog.Logger) (*Client, error) {
	client := qbittorrent.NewClient(qbittorrent.Config{
		Host:     host,
		Username: username,
		Password: password,
	})

	if err := client.Login(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c := &Client{
		client: client,
		logger: logger,
	}

	if version, err := client.GetAppVersion(); err == nil {
		logger.Info().Str("version", version).Msg("Connected to qBittorrent")
	} else {
		logger.Info().Msg("Connected to qBittorrent")
	}
	if apiVersion, err := client.GetWebAPIVersion(); err == nil {
		logger.Debug().Str("webapi_version", apiVersion).Msg("qBittorrent Web API")
	}

	return c, nil
}

// GetTorrents retrieves all torrents from qBittorrent
func (c *Client) GetTorrents(ctx context.Context) ([]TorrentInfo, error) {
	return c.getTorrents(ctx, qbittorrent.TorrentFilterOptions{})
}

// GetTorrentsByHashes retrieves the torrents with the given hashes.
// Hashes that no longer exist are simply absent from the result.
func (c *Client) GetTorrentsByHashes(ctx context.Context, hashes []string) ([]TorrentInfo, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	return c.getTorrents(ctx, qbittorrent.TorrentFilterOptions{Hashes: hashes})
}

// GetTorrent retrieves a single torrent by hash. Returns
// ErrTorrentNotFound when the torrent does not exist.
func (c *Client) GetTorrent(ctx context.Context, hash string) (*TorrentInfo, error) {
	torrents, err := c.getTorrents(ctx, qbittorrent.TorrentFilterOptions{Hashes: []string{hash}})
	if err != nil {
		return nil, err
	}
	if len(torrents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTorrentNotFound, hash)
	}
	return &torrents[0], nil
}

func (c *Client) getTorrents(ctx context.Context, opts qbittorrent.TorrentFilterOptions) ([]TorrentInfo, error) {
	torrents, err := c.client.GetTorrentsCtx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrents: %w", err)
	}

	results := make([]TorrentInfo, 0, len(torrents))
	for _, t := range torrents {
		results = append(results, TorrentInfo{
			Hash:         t.Hash,
			Name:         t.Name,
			Category:     t.Category,
			Tags:         splitTags(t.Tags),
			State:        string(t.State),
			Size:         t.Size,
			Progress:     t.Progress,
			Ratio:        t.Ratio,
			AddedOn:      time.Unix(t.AddedOn, 0),
			LastActivity: time.Unix(t.LastActivity, 0),
			TimeActive:   time.Duration(t.TimeActive) * time.Second,
		})
	}

	return results, nil
}

// GetTrackers retrieves the tracker list for a torrent.
func (c *Client) GetTrackers(ctx context.Context, hash string) ([]Tracker, error) {
	trackers, err := c.client.GetTorrentTrackersCtx(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get trackers for %s: %w", hash, err)
	}

	results := make([]Tracker, 0, len(trackers))
	for _, t := range trackers {
		results = append(results, Tracker{
			URL:     t.Url,
			Status:  TrackerStatus(t.Status),
			Message: t.Message,
		})
	}

	return results, nil
}

// Pause pauses the given torrents.
func (c *Client) Pause(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	if err := c.client.PauseCtx(ctx, hashes); err != nil {
		return fmt.Errorf("failed to pause torrents: %w", err)
	}
	return nil
}

// Resume resumes the given torrents.
func (c *Client) Resume(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	if err := c.client.ResumeCtx(ctx, hashes); err != nil {
		return fmt.Errorf("failed to resume torrents: %w", err)
	}
	return nil
}

// Reannounce asks the trackers of a torrent to be contacted again.
func (c *Client) Reannounce(ctx context.Context, hash string) error {
	if err := c.client.ReAnnounceTorrentsCtx(ctx, []string{hash}); err != nil {
		return fmt.Errorf("failed to reannounce %s: %w", hash, err)
	}
	return nil
}

// Recheck forces a data recheck of a torrent.
func (c *Client) Recheck(ctx context.Context, hash string) error {
	if err := c.client.RecheckCtx(ctx, []string{hash}); err != nil {
		return fmt.Errorf("failed to recheck %s: %w", hash, err)
	}
	return nil
}

// Stop stops a torrent. This maps onto the WebUI pause endpoint, which
// qBittorrent 5 renamed to stop.
func (c *Client) Stop(ctx context.Context, hash string) error {
	if err := c.client.PauseCtx(ctx, []string{hash}); err != nil {
		return fmt.Errorf("failed to stop %s: %w", hash, err)
	}
	return nil
}

// Start starts a stopped torrent.
func (c *Client) Start(ctx context.Context, hash string) error {
	if err := c.client.ResumeCtx(ctx, []string{hash}); err != nil {
		return fmt.Errorf("failed to start %s: %w", hash, err)
	}
	return nil
}

func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
