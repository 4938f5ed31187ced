package race

import (
	"context"
	"fmt"
	"sync"

	"github.com/s0up4200/qbitrace/qbittorrent"
)

// fakeClient is a scriptable in-memory stand-in for the qBittorrent
// client. Tracker responses are consumed per GetTrackers call; the
// last response repeats once the script is exhausted.
type fakeClient struct {
	mu sync.Mutex

	torrents []qbittorrent.TorrentInfo
	// stateQueue holds successive states per hash, popped on each
	// GetTorrent call, to simulate state transitions.
	stateQueue map[string][]string

	trackerScript [][]qbittorrent.Tracker
	trackerCalls  int

	reannounces []string
	rechecks    []string
	stops       []string
	starts      []string
	pauseCalls  [][]string
	resumeCalls [][]string
}

func (f *fakeClient) GetTorrents(ctx context.Context) ([]qbittorrent.TorrentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]qbittorrent.TorrentInfo, len(f.torrents))
	copy(out, f.torrents)
	return out, nil
}

func (f *fakeClient) GetTorrentsByHashes(ctx context.Context, hashes []string) ([]qbittorrent.TorrentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []qbittorrent.TorrentInfo
	for _, t := range f.torrents {
		for _, hash := range hashes {
			if t.Hash == hash {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeClient) GetTorrent(ctx context.Context, hash string) (*qbittorrent.TorrentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.torrents {
		if f.torrents[i].Hash != hash {
			continue
		}
		if queue := f.stateQueue[hash]; len(queue) > 0 {
			f.torrents[i].State = queue[0]
			if len(queue) > 1 {
				f.stateQueue[hash] = queue[1:]
			}
		}
		t := f.torrents[i]
		return &t, nil
	}
	return nil, fmt.Errorf("%w: %s", qbittorrent.ErrTorrentNotFound, hash)
}

func (f *fakeClient) GetTrackers(ctx context.Context, hash string) ([]qbittorrent.Tracker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.trackerScript) == 0 {
		return nil, nil
	}
	idx := f.trackerCalls
	if idx >= len(f.trackerScript) {
		idx = len(f.trackerScript) - 1
	}
	f.trackerCalls++
	return f.trackerScript[idx], nil
}

func (f *fakeClient) Pause(ctx context.Context, hashes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls = append(f.pauseCalls, hashes)
	return nil
}

func (f *fakeClient) Resume(ctx context.Context, hashes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCalls = append(f.resumeCalls, hashes)
	return nil
}

func (f *fakeClient) Reannounce(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reannounces = append(f.reannounces, hash)
	return nil
}

func (f *fakeClient) Recheck(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rechecks = append(f.rechecks, hash)
	return nil
}

func (f *fakeClient) Stop(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, hash)
	return nil
}

func (f *fakeClient) Start(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, hash)
	return nil
}

func (f *fakeClient) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reannounces) + len(f.rechecks) + len(f.stops) + len(f.starts) +
		len(f.pauseCalls) + len(f.resumeCalls)
}

// fakeLedger lets tests inject storage failures.
type fakeLedger struct {
	saveErr error
	saved   map[string][]string
}

func (f *fakeLedger) Save(ctx context.Context, eventID string, hashes []string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.saved == nil {
		f.saved = make(map[string][]string)
	}
	f.saved[eventID] = hashes
	return nil
}

func (f *fakeLedger) ExclusivelyPaused(ctx context.Context, eventID string) ([]string, error) {
	return f.saved[eventID], nil
}

func (f *fakeLedger) AllPausedHashes(ctx context.Context) ([]string, error) {
	var all []string
	for _, hashes := range f.saved {
		all = append(all, hashes...)
	}
	return all, nil
}

func (f *fakeLedger) Delete(ctx context.Context, eventID string) (int64, error) {
	if _, ok := f.saved[eventID]; !ok {
		return 0, nil
	}
	delete(f.saved, eventID)
	return 1, nil
}

func working() qbittorrent.Tracker {
	return qbittorrent.Tracker{URL: "http://tracker.example/announce", Status: qbittorrent.TrackerStatusWorking}
}

func notContacted() qbittorrent.Tracker {
	return qbittorrent.Tracker{URL: "http://tracker.example/announce", Status: qbittorrent.TrackerStatusNotContacted}
}

func updating() qbittorrent.Tracker {
	return qbittorrent.Tracker{URL: "http://tracker.example/announce", Status: qbittorrent.TrackerStatusUpdating}
}

func notWorking(msg string) qbittorrent.Tracker {
	return qbittorrent.Tracker{URL: "http://tracker.example/announce", Status: qbittorrent.TrackerStatusNotWorking, Message: msg}
}
