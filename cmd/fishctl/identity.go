package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// identity is the locally remembered player. The platform normally supplies the
// user id; outside it fishctl makes one up once and keeps it.
type identity struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

func identityPath(dataDir string) string {
	return filepath.Join(dataDir, "identity.json")
}

// loadOrCreateIdentity returns the stored identity, creating it on first use.
// created reports whether the file was just written.
func loadOrCreateIdentity(path, name string, now time.Time) (id identity, created bool, err error) {
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(b, &id); err != nil {
			return id, false, fmt.Errorf("parse identity file: %w", err)
		}
		if strings.TrimSpace(id.UserID) == "" {
			return id, false, fmt.Errorf("identity file %s has no user_id", path)
		}
		return id, false, nil
	case !os.IsNotExist(err):
		return id, false, err
	}

	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return id, false, err
	}
	if strings.TrimSpace(name) == "" {
		name = "Fisher"
	}
	id = identity{
		UserID:    "dev-" + hex.EncodeToString(raw[:]),
		Name:      name,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
	}
	b, _ = json.MarshalIndent(id, "", "  ")
	if err := writeFileAtomic(path, b); err != nil {
		return id, false, err
	}
	return id, true, nil
}

func writeFileAtomic(path string, b []byte) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
