package auth

import (
	"channel-gateway/errors"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// allowedRoles is the closed set of roles an administrator may grant.
var allowedRoles = []string{"admin", "moderator", "support"}

// RoleGrantRequest is the body of an administrative role promotion.
type RoleGrantRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

func ValidateRoleGrant(req RoleGrantRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !lo.Contains(allowedRoles, req.Role) {
		return errors.ErrInvalidRole
	}
	return nil
}
