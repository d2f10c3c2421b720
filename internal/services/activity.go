package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/types"
)

const (
	defaultLogLimit    = 20
	maxLogLimit        = 50
	defaultRecentLimit = 5
	maxRecentLimit     = 5

	defaultActivityTimeout = 5 * time.Second
)

// UpdateLogRepository defines persistence operations for the activity log.
type UpdateLogRepository interface {
	Create(ctx context.Context, entry types.UpdateLog) (types.UpdateLog, error)
	List(ctx context.Context, offset, limit int) ([]types.UpdateLog, int, error)
	Recent(ctx context.Context, limit int) ([]types.UpdateLog, error)
}

// ActivityPublisher forwards recorded entries to other systems.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, entry types.UpdateLog) error
}

// Activity describes an administrative action to record.
type Activity struct {
	Type     types.LogType
	UserID   uuid.UUID
	Message  string
	Metadata map[string]any
}

// ActivityService records and reads the activity log. Recording never
// fails the caller: problems are logged and dropped.
type ActivityService struct {
	repo      UpdateLogRepository
	publisher ActivityPublisher
	logger    *slog.Logger
	timeout   time.Duration
}

// NewActivityService constructs an ActivityService. publisher may be nil.
func NewActivityService(repo UpdateLogRepository, publisher ActivityPublisher, logger *slog.Logger) *ActivityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		timeout:   defaultActivityTimeout,
	}
}

// Record appends an entry for a. Entries without an acting user or a
// message are skipped. The write is detached from the caller's
// cancellation so an aborted request still leaves its trail.
func (s *ActivityService) Record(ctx context.Context, a Activity) {
	if s == nil {
		return
	}
	message := strings.TrimSpace(a.Message)
	if a.UserID == uuid.Nil || message == "" {
		return
	}

	logType := a.Type
	if logType == "" {
		logType = types.LogTypeGeneral
	}
	if !logType.Valid() {
		s.logger.Warn("unknown activity type, recording as general", "type", string(logType))
		logType = types.LogTypeGeneral
	}

	entry := types.UpdateLog{
		Type:    logType,
		Message: message,
		UserID:  a.UserID,
	}
	if a.Metadata != nil {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			s.logger.Warn("dropping unencodable activity metadata", "error", err)
		} else {
			entry.Metadata = raw
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	stored, err := s.repo.Create(ctx, entry)
	if err != nil {
		s.logger.Error("failed to create activity log", "error", err, "message", message)
		return
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishActivity(ctx, stored); err != nil {
		s.logger.Warn("failed to publish activity log", "error", err, "id", stored.ID)
	}
}

// List returns one page of the log, newest first.
func (s *ActivityService) List(ctx context.Context, page, limit int) (types.Page[types.UpdateLog], error) {
	page, limit = clampPage(page, limit, defaultLogLimit, maxLogLimit)
	items, total, err := s.repo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return types.Page[types.UpdateLog]{}, err
	}
	return types.Page[types.UpdateLog]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// Recent returns the newest entries, at most five.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]types.UpdateLog, error) {
	_, limit = clampPage(1, limit, defaultRecentLimit, maxRecentLimit)
	return s.repo.Recent(ctx, limit)
}

func clampPage(page, limit, defaultLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
