package auth

import (
	"log/slog"
	"strings"

	"stall-backend/internal/access"
	"stall-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxBranchIDKey = "branch_id"
	CtxUserNameKey = "user_name"
	CtxScopeKey    = "scope"
)

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxBranchIDKey, claims.BranchID)
		c.Locals(CtxUserNameKey, claims.Name)

		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Role missing from token")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "You are not allowed to perform this action")
	}
}

// IdentityFrom reads the caller set by JWTMiddleware.
func IdentityFrom(c *fiber.Ctx) (access.Identity, error) {
	userID, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || userID == 0 {
		return access.Identity{}, fiber.NewError(fiber.StatusUnauthorized, "User missing from token")
	}
	role, _ := c.Locals(CtxUserRoleKey).(models.UserRole)
	branchID, _ := c.Locals(CtxBranchIDKey).(*uint)
	name, _ := c.Locals(CtxUserNameKey).(string)

	return access.Identity{
		UserID:      userID,
		Role:        role,
		BranchID:    branchID,
		DisplayName: name,
	}, nil
}

// ScopeMiddleware resolves the caller's branch scope on every request. A
// failed lookup leaves the request with NoAccess rather than failing it.
func ScopeMiddleware(resolver *access.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := IdentityFrom(c)
		if err != nil {
			return err
		}

		scope, err := resolver.Resolve(c.UserContext(), id)
		if err != nil {
			slog.WarnContext(c.UserContext(), "scope resolution failed, denying branch access",
				"user_id", id.UserID, "error", err)
		}
		c.Locals(CtxScopeKey, scope)
		return c.Next()
	}
}

// ScopeFrom returns the resolved scope, or NoAccess when none was set.
func ScopeFrom(c *fiber.Ctx) access.Scope {
	if s, ok := c.Locals(CtxScopeKey).(access.Scope); ok {
		return s
	}
	return access.NoAccess()
}
