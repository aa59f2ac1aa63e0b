package clients

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore keeps generated report files and hands out download URLs.
type FileStore interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	URL(ctx context.Context, savedName string) (string, error)
}

type LocalStorage struct {
	BaseDir      string // directory the files are written to
	PublicPrefix string // URL prefix the files are served under, e.g. "/files"
	BaseURL      string // optional scheme+host used to build absolute URLs
}

// NewLocalStorage creates baseDir if missing.
func NewLocalStorage(baseDir, publicPrefix, baseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if publicPrefix == "" {
		publicPrefix = "/files"
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure storage dir %q: %w", baseDir, err)
	}

	return &LocalStorage{BaseDir: baseDir, PublicPrefix: publicPrefix, BaseURL: baseURL}, nil
}

// Save writes data under a random prefix and returns the stored name.
func (s *LocalStorage) Save(_ context.Context, fileName string, data []byte) (string, error) {
	fileName = filepath.Base(fileName)

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", fmt.Errorf("failed to generate file name: %w", err)
	}
	final := fmt.Sprintf("%s_%s", hex.EncodeToString(randBytes), fileName)

	path := filepath.Join(s.BaseDir, final)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}

	return final, nil
}

func (s *LocalStorage) URL(_ context.Context, savedName string) (string, error) {
	return s.GetURL(savedName), nil
}

// GetURL is BaseURL + PublicPrefix + "/" + name, or a relative path when no
// BaseURL is configured.
func (s *LocalStorage) GetURL(fileName string) string {
	prefix := "/" + strings.Trim(s.PublicPrefix, "/")
	if prefix == "/" {
		prefix = "/files"
	}
	base := strings.TrimRight(s.BaseURL, "/")
	return fmt.Sprintf("%s%s/%s", base, prefix, fileName)
}

// Path resolves a stored name inside BaseDir. Names carrying a directory part
// are rejected.
func (s *LocalStorage) Path(savedName string) (string, error) {
	if savedName == "" || savedName != filepath.Base(savedName) || strings.HasPrefix(savedName, ".") {
		return "", fs.ErrNotExist
	}
	path := filepath.Join(s.BaseDir, savedName)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// OriginalName strips the random prefix Save adds.
func OriginalName(savedName string) string {
	if idx := strings.IndexByte(savedName, '_'); idx >= 0 {
		return savedName[idx+1:]
	}
	return savedName
}

// CleanupOlderThan deletes files in BaseDir last modified more than d ago and
// returns how many were removed.
func (s *LocalStorage) CleanupOlderThan(d time.Duration) (int, error) {
	now := time.Now()
	removed := 0
	err := filepath.WalkDir(s.BaseDir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) > d {
			if os.Remove(path) == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}
