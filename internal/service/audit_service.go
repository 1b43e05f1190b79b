package service

import (
	"context"
	"log"

	"backend/internal/model"
	"backend/internal/repository"

	"gorm.io/gorm"
)

// recordAudit writes an audit entry outside any transaction. Auditing is
// best-effort: a failed write is logged and never blocks the transition it
// describes.
func recordAudit(ctx context.Context, auditRepo repository.AuditRepository, entry *model.AuditLog) {
	if err := auditRepo.Log(ctx, entry); err != nil {
		log.Printf("audit write failed for %s: %v", entry.Action, err)
	}
}

// recordAuditDB is recordAudit for services that hold the DB handle directly
func recordAuditDB(ctx context.Context, db *gorm.DB, entry *model.AuditLog) {
	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		log.Printf("audit write failed for %s: %v", entry.Action, err)
	}
}

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, action string, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditService instance
func NewAuditService(db *gorm.DB) AuditService {
	return &auditService{db: db}
}

// GetAuditLogs retrieves strictly paginated records with Users pre-loaded joining details
func (s *auditService) GetAuditLogs(ctx context.Context, action string, page, limit int) ([]AuditLogResponse, int64, error) {
	var logs []model.AuditLog
	var total int64

	countQuery := s.db.WithContext(ctx).Model(&model.AuditLog{})
	if action != "" {
		countQuery = countQuery.Where("action = ?", action)
	}
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	fetch := s.db.WithContext(ctx).Preload("User")
	if action != "" {
		fetch = fetch.Where("action = ?", action)
	}
	offset := (page - 1) * limit
	if err := fetch.Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
