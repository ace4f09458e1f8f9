package handlers

import (
	"sync"

	"github.com/google/uuid"
	"github.com/trackroom/backend/internal/models"
	"github.com/trackroom/backend/pkg/logger"
	"gorm.io/gorm"
)

// RetryStore keeps the in-memory retry closures for failed field writes,
// keyed by the notification row that reported them. Closures do not survive
// a restart; the notification row does, telling the user to redo the edit.
type RetryStore struct {
	mu      sync.Mutex
	retries map[uuid.UUID]func()
}

func NewRetryStore() *RetryStore {
	return &RetryStore{retries: make(map[uuid.UUID]func())}
}

func (s *RetryStore) Put(notificationID uuid.UUID, retry func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[notificationID] = retry
}

// Take removes and returns the closure; a retry fires at most once per
// notification.
func (s *RetryStore) Take(notificationID uuid.UUID) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	retry, ok := s.retries[notificationID]
	if ok {
		delete(s.retries, notificationID)
	}
	return retry, ok
}

// NotificationNotifier persists write outcomes for one editing session as
// notification rows the UI polls for.
type NotificationNotifier struct {
	DB      *gorm.DB
	UserID  uuid.UUID
	Retries *RetryStore
}

func (n *NotificationNotifier) Success(message string) {
	notification := models.Notification{
		UserID:  n.UserID,
		Kind:    models.NotificationSuccess,
		Message: message,
	}
	if err := n.DB.Create(&notification).Error; err != nil {
		logger.Error("notification_create_failed", err, map[string]interface{}{
			"user_id": n.UserID.String(),
		})
	}
}

func (n *NotificationNotifier) Error(message string, retry func()) {
	notification := models.Notification{
		UserID:  n.UserID,
		Kind:    models.NotificationError,
		Message: message,
		Payload: map[string]interface{}{"retryable": true},
	}
	if err := n.DB.Create(&notification).Error; err != nil {
		logger.Error("notification_create_failed", err, map[string]interface{}{
			"user_id": n.UserID.String(),
		})
		return
	}
	n.Retries.Put(notification.ID, retry)
}
