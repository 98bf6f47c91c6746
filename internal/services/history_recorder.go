package services

import (
	"context"
	"time"

	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
)

// HistoryRecorder appends vm_pricing snapshots to vm_pricing_history
type HistoryRecorder struct {
	repo   pricing.HistoryRepository
	logger *logger.Logger
}

// NewHistoryRecorder creates a new history recorder
func NewHistoryRecorder(repo pricing.HistoryRepository, log *logger.Logger) *HistoryRecorder {
	return &HistoryRecorder{repo: repo, logger: log.WithComponent("history")}
}

// Snapshot copies the current pricing rows stamped with runAt
func (h *HistoryRecorder) Snapshot(ctx context.Context, runAt time.Time) (int64, error) {
	n, err := h.repo.AppendSnapshot(ctx, runAt)
	if err != nil {
		h.logger.ErrorWithErr(err, "Failed to append pricing snapshot")
		return 0, err
	}
	h.logger.WithFields(map[string]interface{}{
		"rows":          n,
		"run_timestamp": runAt.UTC().Format(time.RFC3339),
	}).Info("Pricing snapshot recorded")
	return n, nil
}

// History lists recorded snapshots
func (h *HistoryRecorder) History(ctx context.Context, filter pricing.HistoryFilter) ([]pricing.HistoryEntry, int64, error) {
	return h.repo.List(ctx, filter)
}
