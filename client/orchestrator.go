// Package client drives the end-to-end flow of spec §4.8: parse metainfo,
// query the tracker, establish one or more peer sessions, and pump pieces
// through the work queue until the output file is complete. It is also
// home to the CLI-facing command functions in commands.go.
package client

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/markhalden/bitlet/download"
	"github.com/markhalden/bitlet/errs"
	"github.com/markhalden/bitlet/metainfo"
	"github.com/markhalden/bitlet/peer"
	"github.com/markhalden/bitlet/tracker"
	"github.com/markhalden/bitlet/workqueue"
)

// MaxRetries bounds how many times a single piece is requested before the
// orchestrator aborts, per spec §7/§8 property 8.
const MaxRetries = 3

const listenPort = 6881

// Download runs the orchestrator end to end: resume-scan the output file,
// drain the work queue against workers concurrent peer sessions (workers=1
// is the single-session reference path of spec §4.8), and write each
// verified piece at its correct offset.
func Download(ctx context.Context, mi *metainfo.Metainfo, outPath string, workers int, log zerolog.Logger) error {
	if workers < 1 {
		workers = 1
	}

	peerID := NewPeerID()
	peers, err := tracker.Query(ctx, mi.Announce, mi.InfoHash, peerID, listenPort, mi.Info.Length)
	if err != nil {
		return err
	}
	log.Info().Int("peers", len(peers)).Msg("tracker contacted")

	f, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", errs.ErrFileIO, outPath, err)
	}
	defer f.Close()
	if err := f.Truncate(mi.Info.Length); err != nil {
		return fmt.Errorf("%w: preallocating %s: %v", errs.ErrFileIO, outPath, err)
	}

	queue, err := download.Resume(outPath, mi)
	if err != nil {
		return err
	}
	if queue.Empty() {
		log.Info().Msg("all pieces already verified")
		return nil
	}

	retries := newRetryTracker()
	skip := newSkipCache()

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			if err := runWorker(ctx, worker, mi, peers, peerID, queue, retries, skip, f, log); err != nil {
				errCh <- err
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	log.Info().Msg("download complete")
	return nil
}

// runWorker owns at most one peer session at a time, closing it and dialing
// a peer from the tracker's list again whenever a piece download fails, and
// drains the shared queue until it is empty.
func runWorker(ctx context.Context, worker int, mi *metainfo.Metainfo, peers []tracker.Peer, peerID [20]byte,
	queue *workqueue.Queue, retries *retryTracker, skip *skipCache, f *os.File, log zerolog.Logger) error {

	var session *peer.Session
	defer func() {
		if session != nil {
			session.Close()
		}
	}()

	for {
		index, ok := queue.TryPop()
		if !ok {
			return nil
		}

		if session == nil {
			s, err := dialAny(ctx, peers, mi.InfoHash, peerID, skip, log)
			if err != nil {
				return err
			}
			session = s
			log.Info().Int("worker", worker).Msg("peer session ready")
		}

		buf, err := download.Piece(ctx, session, mi, index)
		if err != nil {
			session.Close()
			session = nil
			if retries.bump(index) >= MaxRetries {
				return fmt.Errorf("piece %d exceeded %d retries: %w", index, MaxRetries, err)
			}
			queue.Push(index)
			continue
		}

		if _, err := f.WriteAt(buf, int64(index)*mi.Info.PieceLength); err != nil {
			return fmt.Errorf("%w: writing piece %d: %v", errs.ErrFileIO, index, err)
		}
		retries.clear(index)
		log.Debug().Int("piece", index).Msg("piece written")
	}
}

// dialAny iterates peers, skipping any address in skip, returning the first
// session that completes handshake and Prepare. Peers that fail are added
// to skip so other workers don't immediately retry them too.
func dialAny(ctx context.Context, peers []tracker.Peer, infoHash, peerID [20]byte, skip *skipCache, log zerolog.Logger) (*peer.Session, error) {
	var lastErr error
	for _, p := range peers {
		addr := p.String()
		if skip.shouldSkip(addr) {
			continue
		}
		s, err := peer.Dial(ctx, addr, infoHash, peerID, log)
		if err != nil {
			skip.markFailed(addr)
			lastErr = err
			continue
		}
		if err := s.Prepare(ctx); err != nil {
			s.Close()
			skip.markFailed(addr)
			lastErr = err
			continue
		}
		return s, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no untried peers (tracker returned %d)", errs.ErrPeerIO, len(peers))
	}
	return nil, lastErr
}

// retryTracker counts failed attempts per piece index, guarded by one
// mutex; the work queue itself only ever holds bare indices.
type retryTracker struct {
	mu     sync.Mutex
	counts map[int]int
}

func newRetryTracker() *retryTracker {
	return &retryTracker{counts: make(map[int]int)}
}

func (r *retryTracker) bump(index int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[index]++
	return r.counts[index]
}

func (r *retryTracker) clear(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.counts, index)
}
