// Package history records a snapshot of each applied manifest so deploys can
// be audited and compared after the fact.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

const (
	// entryPrefix is the prefix for history directory names.
	entryPrefix = "deploy-"

	// timeFormat includes nanoseconds to prevent same-second collisions.
	timeFormat = "20060102-150405.000000000"

	// MaxEntries is the number of deploy records retained.
	MaxEntries = 20

	// minFreeDiskBytes is the free space required before recording (10MB).
	minFreeDiskBytes = 10 * 1024 * 1024

	manifestFile = "prefect.yaml"
	recordFile   = "record.yaml"
)

// Record is the metadata stored alongside each applied manifest.
type Record struct {
	// ID uniquely names the deploy.
	ID string `yaml:"id"`

	// Created is when the deploy was recorded.
	Created time.Time `yaml:"created"`

	// Deployments lists the "<flow>/<deployment>" identifiers registered.
	Deployments []string `yaml:"deployments"`
}

// Entry is a recorded deploy on disk.
type Entry struct {
	Name    string
	Path    string
	Created time.Time
	Record  Record
}

// Append records a deploy: the manifest as applied plus a record of what was
// registered. Returns the entry name.
func Append(historyDir string, manifestData []byte, deployments []string) (string, error) {
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}

	if err := checkDiskSpace(historyDir, minFreeDiskBytes+int64(len(manifestData))); err != nil {
		return "", fmt.Errorf("insufficient disk space for history: %w", err)
	}

	record := Record{
		ID:          uuid.New().String(),
		Created:     time.Now().UTC(),
		Deployments: deployments,
	}

	name := entryPrefix + record.Created.Format(timeFormat)
	path := filepath.Join(historyDir, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("create history entry: %w", err)
	}

	if err := os.WriteFile(filepath.Join(path, manifestFile), manifestData, 0644); err != nil {
		cleanup(path)
		return "", fmt.Errorf("write manifest snapshot: %w", err)
	}

	recordData, err := yaml.Marshal(record)
	if err != nil {
		cleanup(path)
		return "", fmt.Errorf("marshal deploy record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, recordFile), recordData, 0644); err != nil {
		cleanup(path)
		return "", fmt.Errorf("write deploy record: %w", err)
	}

	if err := prune(historyDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to prune old history: %v\n", err)
	}

	return name, nil
}

// List returns recorded deploys, newest first.
func List(historyDir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(historyDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if !de.IsDir() || !strings.HasPrefix(de.Name(), entryPrefix) {
			continue
		}

		path := filepath.Join(historyDir, de.Name())

		created, err := time.Parse(timeFormat, strings.TrimPrefix(de.Name(), entryPrefix))
		if err != nil {
			if info, infoErr := de.Info(); infoErr == nil {
				created = info.ModTime()
			}
		}

		entry := Entry{Name: de.Name(), Path: path, Created: created}
		if data, err := os.ReadFile(filepath.Join(path, recordFile)); err == nil {
			_ = yaml.Unmarshal(data, &entry.Record)
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Created.After(entries[j].Created)
	})

	return entries, nil
}

// Manifest returns the manifest bytes recorded with an entry.
func Manifest(historyDir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(historyDir, name, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read recorded manifest: %w", err)
	}
	return data, nil
}

// prune removes entries beyond the retention limit, oldest first.
func prune(historyDir string) error {
	entries, err := List(historyDir)
	if err != nil {
		return err
	}
	if len(entries) <= MaxEntries {
		return nil
	}

	var errs []string
	for _, entry := range entries[MaxEntries:] {
		if err := os.RemoveAll(entry.Path); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", entry.Name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to remove %d history entries: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// checkDiskSpace verifies the filesystem has room for a new entry.
func checkDiskSpace(dir string, requiredBytes int64) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("check disk space: %w", err)
	}

	available := int64(stat.Bavail) * int64(stat.Bsize)
	if available < requiredBytes {
		return fmt.Errorf("need %d bytes, only %d available", requiredBytes, available)
	}
	return nil
}

func cleanup(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to clean up %s: %v\n", path, err)
	}
}
