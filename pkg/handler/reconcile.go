package handler

import (
	"context"

	"github.com/transferd/transferd/pkg/records"
)

// ReconcileOrphans finalizes upload records left with offset == size and
// is_final == false: it re-runs the rename from uploads/ into files/ and
// the record writes for each. A candidate whose uploads/ file is already
// gone fails that rename and is skipped. Call this once at startup,
// before the server begins accepting requests, so no stale orphan is
// still reachable via PATCH.
func (h *Handler) ReconcileOrphans(ctx context.Context) (int, error) {
	ids, err := h.config.Records.ReconcileOrphans(ctx, func(ctx context.Context, rec *records.UploadRecord) error {
		return h.finalizeRecord(ctx, rec)
	})
	if err != nil {
		return 0, err
	}

	if n := len(ids); n > 0 {
		h.logger.Warn("ReconciledOrphanedUploads", "count", n, "ids", ids)
	}
	return len(ids), nil
}
