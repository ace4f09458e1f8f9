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

// Actor identifies who is driving an approval transition. Portal visitors
// act through a share token; editors are authenticated owners or
// collaborators.
type Actor int

const (
	ActorPortalVisitor Actor = iota
	ActorEditor
)

type transitionRule struct {
	to    models.ApprovalStatus
	actor Actor
}

// approvalTransitions is the whole state machine: delivered has no outgoing
// edges and is terminal. Attempting an undefined move fails loudly with
// ErrInvalidTransition instead of no-opping.
var approvalTransitions = map[models.ApprovalStatus][]transitionRule{
	models.ApprovalAwaitingReview: {
		{to: models.ApprovalChangesRequested, actor: ActorPortalVisitor},
		{to: models.ApprovalApproved, actor: ActorPortalVisitor},
	},
	models.ApprovalChangesRequested: {
		{to: models.ApprovalApproved, actor: ActorPortalVisitor},
	},
	models.ApprovalApproved: {
		{to: models.ApprovalDelivered, actor: ActorEditor},
	},
	models.ApprovalDelivered: {},
}

// ValidateTransition checks the move without touching the store.
func ValidateTransition(from, to models.ApprovalStatus, actor Actor) error {
	for _, rule := range approvalTransitions[from] {
		if rule.to != to {
			continue
		}
		if rule.actor != actor {
			return fmt.Errorf("%s -> %s not permitted for this actor: %w", from, to, apperrors.ErrUnauthorized)
		}
		return nil
	}
	return fmt.Errorf("%s -> %s: %w", from, to, apperrors.ErrInvalidTransition)
}

// ApprovalService applies per-track review transitions. Each transition is
// an atomic update of exactly one setting row; delivering a whole release is
// the caller issuing N transitions, each validated on its own.
type ApprovalService struct {
	DB     *gorm.DB
	Portal *PortalService
}

func NewApprovalService(db *gorm.DB, portal *PortalService) *ApprovalService {
	return &ApprovalService{DB: db, Portal: portal}
}

// Transition moves one track's approval status. Feedback text, when present,
// is stored on the same row in the same update.
func (a *ApprovalService) Transition(
	ctx context.Context,
	shareID, trackID uuid.UUID,
	to models.ApprovalStatus,
	actor Actor,
	feedback string,
) (*models.PortalTrackSetting, error) {
	if !to.IsValid() {
		return nil, fmt.Errorf("unknown approval status %q: %w", to, apperrors.ErrInvalidTransition)
	}

	var setting models.PortalTrackSetting
	err := a.DB.WithContext(ctx).
		Where("share_id = ? AND track_id = ?", shareID, trackID).
		First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("track setting: %w", apperrors.ErrNotFound)
		}
		return nil, err
	}

	if err := ValidateTransition(setting.ApprovalStatus, to, actor); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"approval_status": to}
	if feedback != "" {
		updates["feedback"] = feedback
	}

	result := a.DB.WithContext(ctx).
		Model(&models.PortalTrackSetting{}).
		Where("id = ? AND approval_status = ?", setting.ID, setting.ApprovalStatus).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Someone else moved the row between read and write; re-validate on
		// the caller's retry rather than guessing.
		return nil, fmt.Errorf("approval status changed concurrently: %w", apperrors.ErrInvalidTransition)
	}

	setting.ApprovalStatus = to
	if feedback != "" {
		setting.Feedback = feedback
	}

	if err := a.Portal.RefreshShareStatus(ctx, shareID); err != nil {
		return nil, err
	}

	return &setting, nil
}
