package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"microfinance-reports/internal/clients"
	"microfinance-reports/internal/domain"
)

type ExportStatus struct {
	Key      string      `json:"key"`
	Type     string      `json:"type"`
	UserID   int64       `json:"user_id"`
	Filters  interface{} `json:"filters"`
	Progress float64     `json:"progress"`
	FileURL  *string     `json:"file_url"`
	Error    *string     `json:"error,omitempty"`
	Created  time.Time   `json:"created_at"`
}

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute
)

// StatusStore keeps export statuses; clients.RedisClient implements it.
type StatusStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SAdd(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...any) error
}

type ExportView struct {
	Key       string      `json:"key"`
	Type      string      `json:"type"`
	UserID    int64       `json:"user_id"`
	Progress  float64     `json:"progress"`
	FileURL   *string     `json:"file_url"`
	Error     *string     `json:"error"`
	Filters   interface{} `json:"filters"`
	CreatedAt string      `json:"created_at"`
}

type ExportListService struct {
	store StatusStore
	log   *zap.Logger
	now   func() time.Time
}

func NewExportListService(store StatusStore, log *zap.Logger) *ExportListService {
	return &ExportListService{store: store, log: log, now: time.Now}
}

func (s *ExportListService) view(st ExportStatus) ExportView {
	return ExportView{
		Key:       st.Key,
		Type:      st.Type,
		UserID:    st.UserID,
		Progress:  st.Progress,
		FileURL:   st.FileURL,
		Error:     st.Error,
		Filters:   st.Filters,
		CreatedAt: humanizeAgo(st.Created, s.now()),
	}
}

// GetExports lists the user's exports, newest first. Expired entries are
// skipped.
func (s *ExportListService) GetExports(ctx context.Context, userID int64) ([]ExportView, error) {
	if s.store == nil {
		return nil, errors.New("export status store not configured")
	}

	keys, err := s.store.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var (
		statuses []ExportStatus
		stale    []any
	)
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if errors.Is(err, clients.ErrNotFound) {
			stale = append(stale, key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get export %s: %w", key, err)
		}

		var status ExportStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			s.log.Warn("skipping malformed export status", zap.String("key", key), zap.Error(err))
			continue
		}

		if status.UserID == userID {
			statuses = append(statuses, status)
		}
	}

	if len(stale) > 0 {
		if err := s.store.SRem(ctx, exportSetKey, stale...); err != nil {
			s.log.Warn("prune expired export ids", zap.Error(err))
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	exports := make([]ExportView, 0, len(statuses))
	for _, status := range statuses {
		exports = append(exports, s.view(status))
	}
	return exports, nil
}

func (s *ExportListService) GetExport(ctx context.Context, exportID string, userID int64) (*ExportView, error) {
	if s.store == nil {
		return nil, errors.New("export status store not configured")
	}

	data, err := s.store.Get(ctx, exportID)
	if errors.Is(err, clients.ErrNotFound) {
		return nil, domain.ErrExportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get export %s: %w", exportID, err)
	}

	var status ExportStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}

	if status.UserID != userID {
		return nil, domain.ErrExportNotFound
	}

	v := s.view(status)
	return &v, nil
}

func humanizeAgo(t, now time.Time) string {
	if t.After(now) {
		return "just now"
	}

	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d %s ago", minutes, plural(minutes, "minute", "minutes"))
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d %s ago", hours, plural(hours, "hour", "hours"))
	}
	days := hours / 24
	if days < 30 {
		return fmt.Sprintf("%d %s ago", days, plural(days, "day", "days"))
	}
	return t.Format("2006-01-02 15:04")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
