// Package snapshot caches the last good session snapshot on disk so a restarted
// client can show something before the first fetch completes.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"rybalka.web/internal/session"
)

const Version = 1

type Header struct {
	Version   int       `json:"version"`
	UserID    string    `json:"user_id"`
	FetchedAt time.Time `json:"fetched_at"`
}

type SnapshotV1 struct {
	Header   Header
	Snapshot session.Snapshot
}

// Path is where a user's snapshot lives under dataDir. The id is escaped so it
// always names a single file inside the snapshots directory.
func Path(dataDir, userID string) string {
	return filepath.Join(dataDir, "snapshots", url.PathEscape(userID)+".snap.zst")
}

// WriteSnapshot writes to a temp file and renames it into place.
func WriteSnapshot(path string, snap session.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap session.Snapshot) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	v := SnapshotV1{
		Header:   Header{Version: Version, UserID: snap.Profile.UserID, FetchedAt: snap.FetchedAt},
		Snapshot: snap,
	}
	hb, _ := json.Marshal(v.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&v); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (session.Snapshot, error) {
	var v SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return v.Snapshot, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return v.Snapshot, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return v.Snapshot, fmt.Errorf("header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&v); err != nil {
		return v.Snapshot, fmt.Errorf("gob decode: %w", err)
	}
	if v.Header.Version != Version {
		return v.Snapshot, fmt.Errorf("unsupported snapshot version %d", v.Header.Version)
	}
	return v.Snapshot, nil
}
