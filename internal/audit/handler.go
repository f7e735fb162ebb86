package audit

import (
	"strconv"

	"stall-backend/internal/apperr"
	"stall-backend/internal/auth"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	BranchID    *uint              `json:"branch_id"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
}

func queryUint(c *fiber.Ctx, key string) (uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Invalid("invalid query parameter", key)
	}
	return uint(v), nil
}

// GET /api/audit-logs?entity_type=payment&entity_id=1&user_id=2&limit=50
func ListAuditLogsHandler(store storage.AuditStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope := auth.ScopeFrom(c)

		var f storage.AuditFilter
		f.EntityType = c.Query("entity_type")

		var err error
		if f.EntityID, err = queryUint(c, "entity_id"); err != nil {
			return err
		}
		if f.UserID, err = queryUint(c, "user_id"); err != nil {
			return err
		}
		limit, err := queryUint(c, "limit")
		if err != nil {
			return err
		}
		f.Limit = int(limit)

		logs, err := store.ListAudit(c.UserContext(), scope, f)
		if err != nil {
			return apperr.Persistence("list audit logs", err)
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				BranchID:    l.BranchID,
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
			})
		}

		return c.JSON(resp)
	}
}
