package admin

import (
	"errors"
	"fmt"

	"stall-backend/internal/audit"
	"stall-backend/internal/database"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateEmployeeRequest struct {
	CreateUserRequest
	BranchIDs []uint `json:"branch_ids"`
}

type AssignBranchesRequest struct {
	BranchIDs []uint `json:"branch_ids"`
}

// replaceAssignments swaps an employee's branch set in one transaction.
func replaceAssignments(tx *gorm.DB, userID uint, branchIDs []uint) error {
	if len(branchIDs) > 0 {
		var found int64
		if err := tx.Model(&models.Branch{}).Where("id IN ?", branchIDs).Count(&found).Error; err != nil {
			return err
		}
		if int(found) != len(uniq(branchIDs)) {
			return fiber.NewError(fiber.StatusBadRequest, "Unknown branch id in branch_ids")
		}
	}

	if err := tx.Where("user_id = ?", userID).Delete(&models.UserBranch{}).Error; err != nil {
		return err
	}
	for _, id := range uniq(branchIDs) {
		if err := tx.Create(&models.UserBranch{UserID: userID, BranchID: id}).Error; err != nil {
			return err
		}
	}
	return nil
}

func uniq(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// POST /api/admin/employees
func CreateEmployeeHandler(auditStore storage.AuditStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateEmployeeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := newUser(body.CreateUserRequest, models.RoleEmployee)
		if err != nil {
			return err
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(user).Error; err != nil {
				return err
			}
			return replaceAssignments(tx, user.ID, body.BranchIDs)
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create employee")
		}

		resp := toUserResponse(*user)
		resp.BranchIDs = uniq(body.BranchIDs)
		writeAdminLog(c, auditStore, audit.EntityUser, user.ID, nil, models.AuditActionCreate,
			fmt.Sprintf("Employee %s created with %d branch(es)", user.Email, len(resp.BranchIDs)), resp)

		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/admin/employees/:id/branches
func AssignEmployeeBranchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := c.ParamsInt("id")
		if err != nil || userID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
		}

		var body AssignBranchesRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		var user models.User
		if err := database.DB.WithContext(c.UserContext()).First(&user, userID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		if user.Role != models.RoleEmployee {
			return fiber.NewError(fiber.StatusBadRequest, "Only employees have branch assignments")
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			return replaceAssignments(tx, user.ID, body.BranchIDs)
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not assign branches")
		}

		resp := toUserResponse(user)
		resp.BranchIDs = uniq(body.BranchIDs)
		return c.JSON(resp)
	}
}

// GET /api/admin/employees
func ListEmployeesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var users []models.User
		if err := database.DB.WithContext(c.UserContext()).
			Where("role = ?", models.RoleEmployee).
			Order("created_at DESC").
			Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list employees")
		}

		var links []models.UserBranch
		if err := database.DB.WithContext(c.UserContext()).Order("branch_id asc").Find(&links).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list assignments")
		}
		byUser := make(map[uint][]uint)
		for _, l := range links {
			byUser[l.UserID] = append(byUser[l.UserID], l.BranchID)
		}

		res := make([]UserResponse, 0, len(users))
		for _, u := range users {
			r := toUserResponse(u)
			r.BranchIDs = byUser[u.ID]
			res = append(res, r)
		}
		return c.JSON(res)
	}
}
