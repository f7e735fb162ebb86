package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"stall-backend/internal/models"
	"stall-backend/internal/storage"
)

// Entity types written to the audit trail.
const (
	EntityPayment        = "payment"
	EntityPenaltyPayment = "penalty_payment"
	EntityBranch         = "branch"
	EntityUser           = "user"
)

type LogOptions struct {
	BranchID    *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func toJSON(v any) string {
	// jsonb columns reject empty strings
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func WriteLog(ctx context.Context, store storage.AuditStore, opts LogOptions) error {
	entry := models.AuditLog{
		BranchID:    opts.BranchID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  toJSON(opts.Before),
		AfterData:   toJSON(opts.After),
	}

	if err := store.WriteAudit(ctx, &entry); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Record writes an audit entry after the audited change has committed. A
// failure is logged and never reaches the caller.
func Record(ctx context.Context, store storage.AuditStore, opts LogOptions) {
	if store == nil {
		return
	}
	if err := WriteLog(ctx, store, opts); err != nil {
		slog.WarnContext(ctx, "audit entry not written",
			"entity_type", opts.EntityType,
			"entity_id", opts.EntityID,
			"action", opts.Action,
			"error", err,
		)
	}
}
