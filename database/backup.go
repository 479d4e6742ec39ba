package database

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	backupStamp  = "20060102_150405"
	backupSuffix = "_solarbank.db.zip"
)

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a zipped snapshot of the database into the backups directory
// next to the database file.
func (d *Database) Backup(ctx context.Context) error {
	zipPath, err := d.backupAt(ctx, time.Now())
	if err != nil {
		return err
	}
	d.logger.Info("database backup complete", slog.String("filename", zipPath))
	return nil
}

func (d *Database) backupAt(ctx context.Context, now time.Time) (string, error) {
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	zipPath := filepath.Join(dir, now.Format(backupStamp)+backupSuffix)
	snapshot := strings.TrimSuffix(zipPath, ".zip")
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return "", fmt.Errorf("vacuuming database into '%s': %w", snapshot, err)
	}
	defer func() {
		if err := os.Remove(snapshot); err != nil {
			d.logger.Warn("could not remove uncompressed snapshot", slog.Any("error", err))
		}
	}()

	if err := zipFile(snapshot, zipPath, filepath.Base(d.path)); err != nil {
		return "", err
	}
	return zipPath, nil
}

// zipFile deflates src into a new archive at dest holding a single entry.
func zipFile(src, dest, entry string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open snapshot for compression: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = entry
	header.Method = zip.Deflate

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip file entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write snapshot to zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return out.Close()
}

// PurgeBackups deletes backups older than retentionDays. Zero keeps them all.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	removed, err := d.purgeBackupsAt(time.Now(), time.Duration(retentionDays)*24*time.Hour)
	if err != nil {
		return err
	}
	d.logger.Info("backup purge complete", slog.Int("removed", removed))
	return nil
}

func (d *Database) purgeBackupsAt(now time.Time, retention time.Duration) (int, error) {
	dir := d.backupDir()
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	removed := 0
	for _, file := range files {
		name := file.Name()
		stamp, ok := strings.CutSuffix(name, backupSuffix)
		if !ok {
			continue
		}
		t, err := time.ParseInLocation(backupStamp, stamp, now.Location())
		if err != nil {
			d.logger.Debug("skipping file with unreadable backup timestamp", slog.String("filename", name))
			continue
		}
		if now.Sub(t) <= retention {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("remove old backup '%s': %w", path, err)
		}
		removed++
	}
	return removed, nil
}
