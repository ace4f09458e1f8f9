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

// PortalService builds the filtered, read-mostly view a portal visitor sees.
// Visitors are unauthenticated by design: the share token is the only
// credential, and no Role is ever resolved for them.
type PortalService struct {
	DB *gorm.DB
}

func NewPortalService(db *gorm.DB) *PortalService {
	return &PortalService{DB: db}
}

// PortalView is the projection exposed through a share token. Facet pointers
// are nil when the corresponding toggle is off.
type PortalView struct {
	ReleaseTitle string               `json:"releaseTitle"`
	Artist       string               `json:"artist"`
	Format       models.ReleaseFormat `json:"format"`
	Status       models.PortalStatus  `json:"status"`

	GlobalDirection *string               `json:"globalDirection,omitempty"`
	Specs           *string               `json:"specs,omitempty"`
	References      *string               `json:"references,omitempty"`
	PaymentStatus   *models.PaymentStatus `json:"paymentStatus,omitempty"`
	Distribution    *string               `json:"distribution,omitempty"`

	Tracks []PortalTrackView `json:"tracks"`
}

type PortalTrackView struct {
	TrackID         uuid.UUID             `json:"trackID"`
	Title           string                `json:"title"`
	Position        int                   `json:"position"`
	ApprovalStatus  models.ApprovalStatus `json:"approvalStatus"`
	DownloadAllowed bool                  `json:"downloadAllowed"`
	Feedback        string                `json:"feedback,omitempty"`
	Versions        []PortalVersionView   `json:"versions"`
}

type PortalVersionView struct {
	VersionID uuid.UUID `json:"versionID"`
	Label     string    `json:"label"`
}

// GetShareByToken returns the live share for a token. Missing and revoked
// shares are both ErrNotFound so the boundary can answer 404 either way.
func (p *PortalService) GetShareByToken(ctx context.Context, token string) (*models.PortalShare, error) {
	if token == "" {
		return nil, fmt.Errorf("empty portal token: %w", apperrors.ErrNotFound)
	}

	var share models.PortalShare
	err := p.DB.WithContext(ctx).First(&share, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("portal share: %w", apperrors.ErrNotFound)
		}
		return nil, err
	}

	if share.Revoked {
		return nil, fmt.Errorf("portal share revoked: %w", apperrors.ErrNotFound)
	}

	return &share, nil
}

// FetchView loads everything a portal request needs and projects it. The
// download gate reads payment status fresh from the release row on every
// call, since it changes out-of-band via billing webhooks and must not be
// cached.
func (p *PortalService) FetchView(ctx context.Context, token string) (*PortalView, error) {
	share, err := p.GetShareByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	var release models.Release
	if err := p.DB.WithContext(ctx).
		Preload("Tracks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Tracks.Versions").
		First(&release, "id = ?", share.ReleaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("release for share: %w", apperrors.ErrNotFound)
		}
		return nil, err
	}

	var trackSettings []models.PortalTrackSetting
	if err := p.DB.WithContext(ctx).Where("share_id = ?", share.ID).Find(&trackSettings).Error; err != nil {
		return nil, err
	}

	var versionSettings []models.PortalVersionSetting
	if err := p.DB.WithContext(ctx).Where("share_id = ?", share.ID).Find(&versionSettings).Error; err != nil {
		return nil, err
	}

	view := BuildPortalView(share, trackSettings, versionSettings, &release)
	return view, nil
}

// BuildPortalView is a pure projection: share toggles gate release facets,
// setting rows gate tracks and versions (default-deny), and the download
// gate cross-references payment state. No write capability leaves here.
func BuildPortalView(
	share *models.PortalShare,
	trackSettings []models.PortalTrackSetting,
	versionSettings []models.PortalVersionSetting,
	release *models.Release,
) *PortalView {
	view := &PortalView{
		ReleaseTitle: release.Title,
		Artist:       release.Artist,
		Format:       release.Format,
		Tracks:       []PortalTrackView{},
	}

	if share.ShowDirection {
		view.GlobalDirection = &release.GlobalDirection
	}
	if share.ShowSpecs {
		view.Specs = &release.Specs
	}
	if share.ShowReferences {
		view.References = &release.References
	}
	if share.ShowPaymentStatus {
		view.PaymentStatus = &release.PaymentStatus
	}
	if share.ShowDistribution {
		view.Distribution = &release.Distribution
	}

	settingByTrack := make(map[uuid.UUID]models.PortalTrackSetting, len(trackSettings))
	for _, ts := range trackSettings {
		settingByTrack[ts.TrackID] = ts
	}
	visibleVersions := make(map[uuid.UUID]bool, len(versionSettings))
	for _, vs := range versionSettings {
		if vs.Visible {
			visibleVersions[vs.VersionID] = true
		}
	}

	for _, track := range release.Tracks {
		setting, ok := settingByTrack[track.ID]
		if !ok || !setting.Visible {
			continue
		}

		trackView := PortalTrackView{
			TrackID:         track.ID,
			Title:           track.Title,
			Position:        track.Position,
			ApprovalStatus:  setting.ApprovalStatus,
			DownloadAllowed: downloadAllowed(share, setting, release.PaymentStatus),
			Feedback:        setting.Feedback,
			Versions:        []PortalVersionView{},
		}

		for _, version := range track.Versions {
			if !visibleVersions[version.ID] {
				continue
			}
			trackView.Versions = append(trackView.Versions, PortalVersionView{
				VersionID: version.ID,
				Label:     version.Label,
			})
		}

		view.Tracks = append(view.Tracks, trackView)
	}

	view.Status = DerivePortalStatus(view.Tracks)
	return view
}

func downloadAllowed(share *models.PortalShare, setting models.PortalTrackSetting, payment models.PaymentStatus) bool {
	if !setting.DownloadEnabled {
		return false
	}
	if share.RequirePaymentForDownload && payment != models.PaymentStatusPaid {
		return false
	}
	return true
}

// DerivePortalStatus aggregates visible tracks: delivered only when every
// visible track is delivered, approved when every one is at least approved,
// otherwise still in review. An empty portal stays in review.
func DerivePortalStatus(tracks []PortalTrackView) models.PortalStatus {
	if len(tracks) == 0 {
		return models.PortalStatusInReview
	}

	allDelivered := true
	allApproved := true
	for _, t := range tracks {
		if t.ApprovalStatus != models.ApprovalDelivered {
			allDelivered = false
		}
		if t.ApprovalStatus != models.ApprovalApproved && t.ApprovalStatus != models.ApprovalDelivered {
			allApproved = false
		}
	}

	switch {
	case allDelivered:
		return models.PortalStatusDelivered
	case allApproved:
		return models.PortalStatusApproved
	default:
		return models.PortalStatusInReview
	}
}

// CanDownloadTrack re-evaluates the download gate for one track at request
// time. Used by the download endpoint so a payment-status flip is honored on
// the very next call.
func (p *PortalService) CanDownloadTrack(ctx context.Context, share *models.PortalShare, trackID uuid.UUID) (bool, error) {
	var setting models.PortalTrackSetting
	err := p.DB.WithContext(ctx).
		Where("share_id = ? AND track_id = ?", share.ID, trackID).
		First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("track setting: %w", apperrors.ErrNotFound)
		}
		return false, err
	}
	if !setting.Visible {
		return false, fmt.Errorf("track not visible in portal: %w", apperrors.ErrNotFound)
	}

	var release models.Release
	if err := p.DB.WithContext(ctx).Select("id", "payment_status").First(&release, "id = ?", share.ReleaseID).Error; err != nil {
		return false, err
	}

	return downloadAllowed(share, setting, release.PaymentStatus), nil
}

// RefreshShareStatus recomputes the stored status mirror after an approval
// transition. The derived value in the view is still the authority.
func (p *PortalService) RefreshShareStatus(ctx context.Context, shareID uuid.UUID) error {
	var share models.PortalShare
	if err := p.DB.WithContext(ctx).First(&share, "id = ?", shareID).Error; err != nil {
		return err
	}

	view, err := p.FetchView(ctx, share.Token)
	if err != nil {
		// A revoked share keeps its last mirrored status.
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	return p.DB.WithContext(ctx).
		Model(&models.PortalShare{}).
		Where("id = ?", shareID).
		Update("status", view.Status).Error
}
