package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const metadataFileName = "metadata.json"

// metadataEntry mirrors one Record within a snapshot directory's sidecar
// metadata.json, which exists independently of the SQLite index so the
// vault tree remains self-describing if the index is ever rebuilt.
type metadataEntry struct {
	BackupName   string    `json:"backup_name"`
	OriginalPath string    `json:"original_path"`
	Timestamp    time.Time `json:"timestamp"`
	Hash         string    `json:"hash,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	ProcessName  string    `json:"process_name,omitempty"`
}

func readMetadata(snapDir string) ([]metadataEntry, error) {
	path := filepath.Join(snapDir, metadataFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var entries []metadataEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

func writeMetadata(snapDir string, entries []metadataEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	path := filepath.Join(snapDir, metadataFileName)
	if err := os.WriteFile(path, data, FileMode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	chmodBestEffort(path, FileMode)
	return nil
}
