package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"stall-backend/internal/models"

	"gopkg.in/yaml.v3"
)

type Fixture struct {
	Branches     []BranchFixture      `yaml:"branches"`
	Users        []UserFixture        `yaml:"users"`
	Stallholders []StallholderFixture `yaml:"stallholders"`
	Violations   []ViolationFixture   `yaml:"violations"`
}

type BranchFixture struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
}

type UserFixture struct {
	FirstName string          `yaml:"first_name"`
	LastName  string          `yaml:"last_name"`
	Email     string          `yaml:"email"`
	Password  string          `yaml:"password"`
	Role      models.UserRole `yaml:"role"`
	Branch    string          `yaml:"branch"`   // branch managers
	Branches  []string        `yaml:"branches"` // employees
}

type StallholderFixture struct {
	Key           string  `yaml:"key"`
	Branch        string  `yaml:"branch"`
	FullName      string  `yaml:"full_name"`
	BusinessName  string  `yaml:"business_name"`
	ContactNumber string  `yaml:"contact_number"`
	Email         string  `yaml:"email"`
	StallNumber   string  `yaml:"stall_number"`
	MonthlyRent   float64 `yaml:"monthly_rent"`
}

type ViolationFixture struct {
	Stallholder   string    `yaml:"stallholder"`
	Type          string    `yaml:"type"`
	Description   string    `yaml:"description"`
	PenaltyAmount float64   `yaml:"penalty_amount"`
	ReportedAt    time.Time `yaml:"reported_at"`
}

func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes and cross-checks a fixture document.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	branches := map[string]bool{}
	for _, b := range f.Branches {
		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("branch without a name")
		}
		branches[b.Name] = true
	}

	for _, u := range f.Users {
		if !u.Role.Valid() {
			return nil, fmt.Errorf("user %s: unknown role %q", u.Email, u.Role)
		}
		if u.Role == models.RoleBranchManager && !branches[u.Branch] {
			return nil, fmt.Errorf("user %s: unknown branch %q", u.Email, u.Branch)
		}
		for _, b := range u.Branches {
			if !branches[b] {
				return nil, fmt.Errorf("user %s: unknown branch %q", u.Email, b)
			}
		}
	}

	keys := map[string]bool{}
	for _, s := range f.Stallholders {
		if s.Key == "" {
			return nil, fmt.Errorf("stallholder %q has no key", s.FullName)
		}
		if keys[s.Key] {
			return nil, fmt.Errorf("duplicate stallholder key %q", s.Key)
		}
		if !branches[s.Branch] {
			return nil, fmt.Errorf("stallholder %s: unknown branch %q", s.Key, s.Branch)
		}
		keys[s.Key] = true
	}

	for i, v := range f.Violations {
		if !keys[v.Stallholder] {
			return nil, fmt.Errorf("violation %d: unknown stallholder %q", i, v.Stallholder)
		}
		if v.PenaltyAmount <= 0 {
			return nil, fmt.Errorf("violation %d: penalty_amount must be positive", i)
		}
	}
	return &f, nil
}
