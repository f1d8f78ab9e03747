package download

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"os"

	"github.com/markhalden/bitlet/errs"
	"github.com/markhalden/bitlet/metainfo"
	"github.com/markhalden/bitlet/workqueue"
)

// Resume scans an existing output file (if any) and returns a queue of the
// piece indices that still need downloading, per spec §4.7. The scan is
// read-only: it never mutates path, and a missing file simply enqueues
// every piece.
func Resume(path string, mi *metainfo.Metainfo) (*workqueue.Queue, error) {
	q := workqueue.New()
	numPieces := mi.Info.NumPieces()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		for i := 0; i < numPieces; i++ {
			q.Push(i)
		}
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", errs.ErrFileIO, path, err)
	}
	defer f.Close()

	for i := 0; i < numPieces; i++ {
		pieceLen := mi.Info.PieceLen(i)
		buf := make([]byte, pieceLen)
		if _, err := f.ReadAt(buf, int64(i)*mi.Info.PieceLength); err != nil {
			q.Push(i)
			continue
		}
		if sha1.Sum(buf) != mi.Info.PieceHash(i) {
			q.Push(i)
		}
	}
	return q, nil
}
