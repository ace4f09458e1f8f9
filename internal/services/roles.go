package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/trackroom/backend/internal/apperrors"
	"github.com/trackroom/backend/internal/models"
	"gorm.io/gorm"
)

// RoleService resolves a user's permission tier for one release. Resolution
// happens per request; roles are never cached, so a revoked membership takes
// effect on the very next call.
type RoleService struct {
	DB *gorm.DB
}

func NewRoleService(db *gorm.DB) *RoleService {
	return &RoleService{DB: db}
}

// ResolveRole returns the user's role for the release. Ownership always wins
// and short-circuits the membership lookup, even if a stale membership row
// exists for the same user. A missing release is reported as ErrNotFound,
// never folded into RoleNone. Portal tokens never pass through here.
func (r *RoleService) ResolveRole(ctx context.Context, releaseID, userID uuid.UUID) (models.Role, error) {
	var release models.Release
	err := r.DB.WithContext(ctx).Select("id", "owner_id").First(&release, "id = ?", releaseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoleNone, fmt.Errorf("release %s: %w", releaseID, apperrors.ErrNotFound)
		}
		return models.RoleNone, err
	}

	if release.OwnerID == userID {
		return models.RoleOwner, nil
	}

	var member models.ReleaseMember
	err = r.DB.WithContext(ctx).
		Where("release_id = ? AND user_id = ? AND accepted_at IS NOT NULL", releaseID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoleNone, nil
		}
		return models.RoleNone, err
	}

	switch member.Role {
	case models.MemberRoleCollaborator:
		return models.RoleCollaborator, nil
	case models.MemberRoleClient:
		return models.RoleClient, nil
	default:
		return models.RoleNone, nil
	}
}
