package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/trackroom/backend/internal/models"
	"gorm.io/gorm"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Release{},
		&models.Track{},
		&models.AudioVersion{},
		&models.ReleaseMember{},
		&models.PortalShare{},
		&models.PortalTrackSetting{},
		&models.PortalVersionSetting{},
		&models.Notification{},
		&models.AuditLog{},
		&models.AuditExportCursor{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         models.UserRoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user %s: %v", email, err)
	}
	return user
}

func createRelease(t *testing.T, db *gorm.DB, owner *models.User, title string) *models.Release {
	t.Helper()

	release := &models.Release{
		Title:   title,
		Artist:  "Test Artist",
		Format:  models.ReleaseFormatSingle,
		OwnerID: owner.ID,
	}
	if err := db.Create(release).Error; err != nil {
		t.Fatalf("failed creating release %s: %v", title, err)
	}
	return release
}

func createMember(t *testing.T, db *gorm.DB, release *models.Release, user *models.User, role models.MemberRole, accepted bool) *models.ReleaseMember {
	t.Helper()

	member := &models.ReleaseMember{
		ReleaseID:   release.ID,
		UserID:      user.ID,
		Role:        role,
		InvitedByID: release.OwnerID,
	}
	if accepted {
		now := time.Now()
		member.AcceptedAt = &now
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed creating membership: %v", err)
	}
	return member
}

func createTrack(t *testing.T, db *gorm.DB, release *models.Release, title string, position int) *models.Track {
	t.Helper()

	track := &models.Track{
		ReleaseID: release.ID,
		Title:     title,
		Position:  position,
	}
	if err := db.Create(track).Error; err != nil {
		t.Fatalf("failed creating track %s: %v", title, err)
	}
	return track
}

func createShare(t *testing.T, db *gorm.DB, release *models.Release, token string) *models.PortalShare {
	t.Helper()

	share := &models.PortalShare{
		ReleaseID: release.ID,
		Token:     token,
		Status:    models.PortalStatusInReview,
	}
	if err := db.Create(share).Error; err != nil {
		t.Fatalf("failed creating portal share: %v", err)
	}
	return share
}

func createTrackSetting(t *testing.T, db *gorm.DB, share *models.PortalShare, track *models.Track, visible, downloadEnabled bool) *models.PortalTrackSetting {
	t.Helper()

	setting := &models.PortalTrackSetting{
		ShareID:         share.ID,
		TrackID:         track.ID,
		Visible:         visible,
		DownloadEnabled: downloadEnabled,
		ApprovalStatus:  models.ApprovalAwaitingReview,
	}
	if err := db.Create(setting).Error; err != nil {
		t.Fatalf("failed creating track setting: %v", err)
	}
	return setting
}
