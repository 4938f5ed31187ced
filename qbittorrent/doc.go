// Package qbittorrent provides a client for interacting with the qBittorrent Web API.
//
// This package wraps the autobrr/go-qbittorrent library to provide a higher-level
// interface tailored for qbitrace's needs: listing torrents, inspecting tracker
// status, and issuing the pause/resume/reannounce/recheck mutations the racing
// workflow is built on.
//
// # Features
//
//   - Connection management with authentication
//   - Torrent retrieval by hash or in bulk
//   - Tracker status inspection
//   - Pause, resume, reannounce, recheck, stop and start mutations
//   - Context-aware operations for graceful cancellation
//
// # Usage
//
//	client, err := qbittorrent.NewClient(host, username, password, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	torrent, err := client.GetTorrent(ctx, hash)
//	if err != nil {
//	    // errors.Is(err, qbittorrent.ErrTorrentNotFound) for missing torrents
//	}
package qbittorrent
