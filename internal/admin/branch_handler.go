package admin

import (
	"errors"
	"fmt"
	"strings"

	"stall-backend/internal/audit"
	"stall-backend/internal/auth"
	"stall-backend/internal/database"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type BranchResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

type CreateBranchRequest struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   *string `json:"phone"`
}

type UpdateBranchRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
}

type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type UserResponse struct {
	ID        uint            `json:"id"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	BranchID  *uint           `json:"branch_id"`
	BranchIDs []uint          `json:"branch_ids,omitempty"`
	CreatedAt string          `json:"created_at"`
}

func toBranchResponse(b models.Branch) BranchResponse {
	return BranchResponse{
		ID:        b.ID,
		Name:      b.Name,
		Address:   b.Address,
		Phone:     b.Phone,
		CreatedAt: b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		BranchID:  u.BranchID,
		CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func writeAdminLog(c *fiber.Ctx, store storage.AuditStore, entity string, entityID uint, branchID *uint, action models.AuditAction, desc string, after any) {
	id, err := auth.IdentityFrom(c)
	if err != nil {
		return
	}
	audit.Record(c.UserContext(), store, audit.LogOptions{
		BranchID:    branchID,
		UserID:      id.UserID,
		UserName:    id.DisplayName,
		EntityType:  entity,
		EntityID:    entityID,
		Action:      action,
		Description: desc,
		After:       after,
	})
}

// newUser validates the request and hashes the password.
func newUser(body CreateUserRequest, role models.UserRole) (*models.User, error) {
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	body.FirstName = strings.TrimSpace(body.FirstName)

	if body.FirstName == "" || body.Email == "" || body.Password == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "first_name, email and password are required")
	}
	if len(body.Password) < 8 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "password must be at least 8 characters")
	}

	var count int64
	if err := database.DB.Model(&models.User{}).Where("email = ?", body.Email).Count(&count).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not check email")
	}
	if count > 0 {
		return nil, fiber.NewError(fiber.StatusConflict, "Email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
	}

	return &models.User{
		FirstName:    body.FirstName,
		LastName:     strings.TrimSpace(body.LastName),
		Email:        body.Email,
		PasswordHash: string(hash),
		Role:         role,
	}, nil
}

func findBranch(c *fiber.Ctx) (*models.Branch, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid branch id")
	}
	var branch models.Branch
	if err := database.DB.WithContext(c.UserContext()).First(&branch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Branch not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not load branch")
	}
	return &branch, nil
}

// ----------------------------------------
// BRANCH CRUD
// ----------------------------------------

// POST /api/admin/branches
func CreateBranchHandler(auditStore storage.AuditStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Branch name is required")
		}

		branch := models.Branch{
			Name:    body.Name,
			Address: strings.TrimSpace(body.Address),
		}
		if body.Phone != nil {
			branch.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := database.DB.WithContext(c.UserContext()).Create(&branch).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "A branch with this name already exists")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create branch")
		}

		resp := toBranchResponse(branch)
		writeAdminLog(c, auditStore, audit.EntityBranch, branch.ID, &branch.ID, models.AuditActionCreate,
			fmt.Sprintf("Branch %q created", branch.Name), resp)

		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// GET /api/admin/branches
func ListBranchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branches []models.Branch
		if err := database.DB.WithContext(c.UserContext()).Order("name asc").Find(&branches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list branches")
		}

		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, toBranchResponse(b))
		}
		return c.JSON(res)
	}
}

// GET /api/admin/branches/:id
func GetBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := findBranch(c)
		if err != nil {
			return err
		}
		return c.JSON(toBranchResponse(*branch))
	}
}

// PUT /api/admin/branches/:id
func UpdateBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := findBranch(c)
		if err != nil {
			return err
		}

		var body UpdateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Branch name is required")
			}
			branch.Name = name
		}
		if body.Address != nil {
			branch.Address = strings.TrimSpace(*body.Address)
		}
		if body.Phone != nil {
			branch.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := database.DB.WithContext(c.UserContext()).Save(branch).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update branch")
		}
		return c.JSON(toBranchResponse(*branch))
	}
}

// DELETE /api/admin/branches/:id
func DeleteBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := findBranch(c)
		if err != nil {
			return err
		}

		// stallholders and payments reference the branch
		var stallholders int64
		if err := database.DB.WithContext(c.UserContext()).
			Model(&models.Stallholder{}).
			Where("branch_id = ?", branch.ID).
			Count(&stallholders).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check branch usage")
		}
		if stallholders > 0 {
			return fiber.NewError(fiber.StatusConflict, "Branch still has stallholders")
		}

		if err := database.DB.WithContext(c.UserContext()).Delete(branch).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete branch")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----------------------------------------
// BRANCH MANAGERS
// ----------------------------------------

// POST /api/admin/branches/:id/managers
func CreateBranchManagerHandler(auditStore storage.AuditStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := findBranch(c)
		if err != nil {
			return err
		}

		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := newUser(body, models.RoleBranchManager)
		if err != nil {
			return err
		}
		user.BranchID = &branch.ID

		if err := database.DB.WithContext(c.UserContext()).Create(user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create branch manager")
		}

		resp := toUserResponse(*user)
		writeAdminLog(c, auditStore, audit.EntityUser, user.ID, &branch.ID, models.AuditActionCreate,
			fmt.Sprintf("Branch manager %s created for %s", user.Email, branch.Name), resp)

		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// GET /api/admin/branches/:id/managers
func ListBranchManagersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := findBranch(c)
		if err != nil {
			return err
		}

		var users []models.User
		if err := database.DB.WithContext(c.UserContext()).
			Where("branch_id = ? AND role = ?", branch.ID, models.RoleBranchManager).
			Order("created_at DESC").
			Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list branch managers")
		}

		res := make([]UserResponse, 0, len(users))
		for _, u := range users {
			res = append(res, toUserResponse(u))
		}
		return c.JSON(res)
	}
}
