package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/markhalden/bitlet/bencode"
	"github.com/markhalden/bitlet/download"
	"github.com/markhalden/bitlet/errs"
	"github.com/markhalden/bitlet/metainfo"
	"github.com/markhalden/bitlet/peer"
	"github.com/markhalden/bitlet/tracker"
)

// Decode implements the `decode <bencoded>` command: parse arg as a single
// bencode value and render it as JSON.
func Decode(arg string) (string, error) {
	v, err := bencode.Decode([]byte(arg))
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(bencode.ToNative(v))
	if err != nil {
		return "", fmt.Errorf("%w: rendering decoded value: %v", errs.ErrUsage, err)
	}
	return string(b), nil
}

// Info implements the `info <file>` command.
func Info(path string) (string, error) {
	mi, err := loadMetainfo(path)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tracker URL: %s\n", mi.Announce)
	fmt.Fprintf(&sb, "Length: %d\n", mi.Info.Length)
	fmt.Fprintf(&sb, "Info Hash: %x\n", mi.InfoHash)
	fmt.Fprintf(&sb, "Name: %s\n", mi.Info.Name)
	fmt.Fprintf(&sb, "Piece Length: %d\n", mi.Info.PieceLength)
	fmt.Fprintln(&sb, "Piece Hashes:")
	for i := 0; i < mi.Info.NumPieces(); i++ {
		h := mi.Info.PieceHash(i)
		fmt.Fprintf(&sb, "%x\n", h)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// Peers implements the `peers <file>` command.
func Peers(ctx context.Context, path string) (string, error) {
	mi, err := loadMetainfo(path)
	if err != nil {
		return "", err
	}
	peerID := NewPeerID()
	peerList, err := tracker.Query(ctx, mi.Announce, mi.InfoHash, peerID, listenPort, mi.Info.Length)
	if err != nil {
		return "", err
	}
	lines := make([]string, len(peerList))
	for i, p := range peerList {
		lines[i] = p.String()
	}
	return strings.Join(lines, "\n"), nil
}

// Handshake implements the `handshake <file> <ip:port>` command.
func Handshake(ctx context.Context, path, addr string, log zerolog.Logger) (string, error) {
	mi, err := loadMetainfo(path)
	if err != nil {
		return "", err
	}
	peerID := NewPeerID()
	s, err := peer.Dial(ctx, addr, mi.InfoHash, peerID, log)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return fmt.Sprintf("Peer ID: %x", s.RemotePeerID), nil
}

// DownloadPiece implements the `download_piece -o <out> <file> <index>`
// command: connects to the first reachable peer, downloads and verifies one
// piece, and writes it to outPath starting at offset 0 (it is the only
// content of that file, not an offset within a larger one).
func DownloadPiece(ctx context.Context, path, outPath string, index int, log zerolog.Logger) error {
	mi, err := loadMetainfo(path)
	if err != nil {
		return err
	}
	if index < 0 || index >= mi.Info.NumPieces() {
		return fmt.Errorf("%w: piece index %d out of range [0, %d)", errs.ErrUsage, index, mi.Info.NumPieces())
	}

	peerID := NewPeerID()
	peers, err := tracker.Query(ctx, mi.Announce, mi.InfoHash, peerID, listenPort, mi.Info.Length)
	if err != nil {
		return err
	}
	skip := newSkipCache()
	session, err := dialAny(ctx, peers, mi.InfoHash, peerID, skip, log)
	if err != nil {
		return err
	}
	defer session.Close()

	buf, err := download.Piece(ctx, session, mi, index)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, buf, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", errs.ErrFileIO, outPath, err)
	}
	log.Info().Int("piece", index).Str("out", outPath).Msg("piece written")
	return nil
}

// DownloadFile implements the `download -o <out> <file>` command. If
// outPath is "default", info.name is used instead.
func DownloadFile(ctx context.Context, path, outPath string, workers int, log zerolog.Logger) error {
	mi, err := loadMetainfo(path)
	if err != nil {
		return err
	}
	if outPath == "default" {
		outPath = mi.Info.Name
	}
	return Download(ctx, mi, outPath, workers, log)
}

func loadMetainfo(path string) (*metainfo.Metainfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errs.ErrFileIO, path, err)
	}
	return metainfo.Parse(raw)
}

// Help is the `help` / no-args command text.
const Help = `bitlet - single-file torrent downloader

Usage:
  decode <bencoded>
  info <file>
  peers <file>
  handshake <file> <ip:port>
  download_piece -o <out> <file> <index>
  download -o <out> <file> [-workers N]
  help`
