package qbittorrent

import "time"

// TorrentInfo contains information about a torrent
type TorrentInfo struct {
	Hash         string
	Name         string
	Category     string
	Tags         []string
	State        string
	Size         int64
	Progress     float64
	Ratio        float64
	AddedOn      time.Time
	LastActivity time.Time
	TimeActive   time.Duration
}

// IsPaused reports whether the torrent is paused. qBittorrent 5 renamed
// the paused states to stopped, so both spellings are recognized.
func (t *TorrentInfo) IsPaused() bool {
	switch t.State {
	case "pausedDL", "pausedUP", "stoppedDL", "stoppedUP":
		return true
	}
	return false
}

// IsChecking reports whether the torrent's data is still being checked.
func (t *TorrentInfo) IsChecking() bool {
	switch t.State {
	case "checkingDL", "checkingUP", "checkingResumeData":
		return true
	}
	return false
}

// IsComplete reports whether the torrent has finished downloading.
func (t *TorrentInfo) IsComplete() bool {
	return t.Progress >= 1.0
}

// IsErrored reports whether the torrent is in an error state.
func (t *TorrentInfo) IsErrored() bool {
	return t.State == "error" || t.State == "missingFiles"
}

// TrackerStatus is the tracker state reported by the WebUI API.
type TrackerStatus int

// Tracker states, matching the qBittorrent WebUI API values.
const (
	TrackerStatusDisabled     TrackerStatus = 0
	TrackerStatusNotContacted TrackerStatus = 1
	TrackerStatusWorking      TrackerStatus = 2
	TrackerStatusUpdating     TrackerStatus = 3
	TrackerStatusNotWorking   TrackerStatus = 4
)

// String returns a human-readable tracker status.
func (s TrackerStatus) String() string {
	switch s {
	case TrackerStatusDisabled:
		return "disabled"
	case TrackerStatusNotContacted:
		return "not contacted"
	case TrackerStatusWorking:
		return "working"
	case TrackerStatusUpdating:
		return "updating"
	case TrackerStatusNotWorking:
		return "not working"
	default:
		return "unknown"
	}
}

// Tracker describes one tracker of a torrent.
type Tracker struct {
	URL     string
	Status  TrackerStatus
	Message string
}
