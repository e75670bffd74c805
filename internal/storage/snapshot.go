package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Snapshot errors.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotExists   = errors.New("snapshot already exists")
	ErrInvalidSnapshot  = errors.New("invalid snapshot tag")
)

// SnapshotManager copies the database aside before bulk writes so a run
// can be rolled back.
type SnapshotManager struct {
	db           *sql.DB
	dbPath       string
	snapshotsDir string
}

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	Description   string    `json:"description"`
	FileSize      int64     `json:"file_size"`
	Transactions  int       `json:"transactions"`
	Categories    int       `json:"categories"`
	SchemaVersion int       `json:"schema_version"`
}

// NewSnapshotManager creates a manager storing snapshots in a "snapshots"
// directory next to the database file.
func NewSnapshotManager(db *sql.DB, dbPath string) (*SnapshotManager, error) {
	if dbPath == "" || dbPath == ":memory:" || strings.HasPrefix(dbPath, "file::memory:") {
		return nil, fmt.Errorf("snapshots need a file-backed database, got %q", dbPath)
	}

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	dir := filepath.Join(filepath.Dir(absPath), "snapshots")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &SnapshotManager{
		db:           db,
		dbPath:       absPath,
		snapshotsDir: dir,
	}, nil
}

// Create writes a consistent copy of the database. An empty tag is replaced
// by a timestamped one.
func (sm *SnapshotManager) Create(ctx context.Context, tag, description string) (*SnapshotInfo, error) {
	if tag == "" {
		tag = "snapshot-" + time.Now().Format("2006-01-02-150405")
	}
	if err := validateTag(tag); err != nil {
		return nil, err
	}

	snapshotPath := sm.dataPath(tag)
	if _, err := os.Stat(snapshotPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotExists, tag)
	}

	info := SnapshotInfo{
		ID:          tag,
		CreatedAt:   time.Now().UTC(),
		Description: description,
	}

	if err := sm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&info.SchemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	if err := sm.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&info.Transactions); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	if err := sm.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&info.Categories); err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}

	if strings.ContainsAny(snapshotPath, `'";`) {
		return nil, fmt.Errorf("%w: path contains forbidden characters", ErrInvalidSnapshot)
	}
	// #nosec G201 - snapshotPath is built from a validated tag
	if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", snapshotPath)); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	stat, err := os.Stat(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	info.FileSize = stat.Size()

	if err := writeJSONFile(sm.metaPath(tag), info); err != nil {
		if rmErr := os.Remove(snapshotPath); rmErr != nil {
			slog.Error("failed to remove snapshot after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save snapshot metadata: %w", err)
	}

	slog.Info("created snapshot", "id", tag, "transactions", info.Transactions, "size", info.FileSize)
	return &info, nil
}

// List returns all snapshots, newest first. Unreadable metadata is skipped.
func (sm *SnapshotManager) List(_ context.Context) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(sm.snapshotsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	snapshots := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		info, err := readSnapshotInfo(filepath.Join(sm.snapshotsDir, entry.Name()))
		if err != nil {
			slog.Debug("skipping unreadable snapshot metadata", "file", entry.Name(), "error", err)
			continue
		}
		snapshots = append(snapshots, *info)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// Restore replaces the database file with a snapshot. It closes the
// manager's database handle; callers must reopen storage afterwards.
func (sm *SnapshotManager) Restore(_ context.Context, tag string) error {
	if err := validateTag(tag); err != nil {
		return err
	}

	snapshotPath := sm.dataPath(tag)
	if _, err := os.Stat(snapshotPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, tag)
		}
		return fmt.Errorf("failed to access snapshot: %w", err)
	}

	if err := sm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	backupPath := sm.dbPath + ".restore-backup"
	if err := copyFile(sm.dbPath, backupPath); err != nil {
		return fmt.Errorf("failed to back up current database: %w", err)
	}

	if err := copyFile(snapshotPath, sm.dbPath); err != nil {
		if restoreErr := copyFile(backupPath, sm.dbPath); restoreErr != nil {
			slog.Error("failed to put database back after restore failure", "error", restoreErr)
		}
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	if err := os.Remove(backupPath); err != nil {
		slog.Warn("failed to remove restore backup", "error", err)
	}

	slog.Info("restored snapshot", "id", tag)
	return nil
}

func (sm *SnapshotManager) dataPath(tag string) string {
	return filepath.Join(sm.snapshotsDir, tag+".db")
}

func (sm *SnapshotManager) metaPath(tag string) string {
	return filepath.Join(sm.snapshotsDir, tag+".meta.json")
}

func validateTag(tag string) error {
	if tag == "" || strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidSnapshot, tag)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readSnapshotInfo(path string) (*SnapshotInfo, error) {
	// #nosec G304 - path comes from a directory listing of snapshotsDir
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func copyFile(src, dst string) error {
	// #nosec G304 - src is the database or a snapshot inside snapshotsDir
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	tmp := dst + ".tmp"
	// #nosec G304 - tmp is derived from a managed path
	destination, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := destination.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
