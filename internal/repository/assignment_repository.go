package repository

import (
	"context"
	"order_dispatch/internal/models"
	"time"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssignmentRepository interface {
	CreateBatch(ctx context.Context, assignments []models.RestaurantAssignment) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error)
	GetPendingByRestaurant(ctx context.Context, restaurantID uuid.UUID, now time.Time) ([]models.RestaurantAssignment, error)
	// Respond moves the restaurant's unexpired pending assignment for the
	// order to status. It returns nil when there is no such assignment.
	Respond(ctx context.Context, orderID, restaurantID uuid.UUID, status models.AssignmentStatus, notes string, now time.Time) (*models.RestaurantAssignment, error)
	// CancelPending cancels every pending assignment of the order except
	// the one owned by keepRestaurantID and returns the cancelled rows.
	CancelPending(ctx context.Context, orderID uuid.UUID, keepRestaurantID *uuid.UUID) ([]models.RestaurantAssignment, error)
	CountByStatus(ctx context.Context, orderID uuid.UUID, statuses ...models.AssignmentStatus) (int64, error)
	// DueOrderIDs lists orders holding pending assignments past their
	// deadline, oldest deadline first.
	DueOrderIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// ExpirePending marks the order's overdue pending assignments as
	// expired. Callers hold the order row lock.
	ExpirePending(ctx context.Context, orderID uuid.UUID, now time.Time) ([]models.RestaurantAssignment, error)
	TriedRestaurantIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
	MaxAttempt(ctx context.Context, orderID uuid.UUID) (int, error)
}

type assignmentRepository struct {
	base
}

func NewAssignmentRepository(db *gorm.DB, getter *trmgorm.CtxGetter) AssignmentRepository {
	return &assignmentRepository{base: newBase(db, getter)}
}

func (r *assignmentRepository) CreateBatch(ctx context.Context, assignments []models.RestaurantAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.conn(ctx).Create(&assignments).Error
}

func (r *assignmentRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error) {
	var assignments []models.RestaurantAssignment
	err := r.conn(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) GetPendingByRestaurant(ctx context.Context, restaurantID uuid.UUID, now time.Time) ([]models.RestaurantAssignment, error) {
	var assignments []models.RestaurantAssignment
	err := r.conn(ctx).
		Where("restaurant_id = ? AND status = ? AND expires_at > ?", restaurantID, models.AssignmentPending, now).
		Order("expires_at").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) Respond(ctx context.Context, orderID, restaurantID uuid.UUID, status models.AssignmentStatus, notes string, now time.Time) (*models.RestaurantAssignment, error) {
	var rows []models.RestaurantAssignment
	res := r.conn(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("order_id = ? AND restaurant_id = ? AND status = ? AND expires_at > ?",
			orderID, restaurantID, models.AssignmentPending, now).
		Updates(map[string]interface{}{
			"status":         status,
			"responded_at":   now,
			"response_notes": notes,
			"updated_at":     now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *assignmentRepository) CancelPending(ctx context.Context, orderID uuid.UUID, keepRestaurantID *uuid.UUID) ([]models.RestaurantAssignment, error) {
	var rows []models.RestaurantAssignment
	query := r.conn(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("order_id = ? AND status = ?", orderID, models.AssignmentPending)
	if keepRestaurantID != nil {
		query = query.Where("restaurant_id <> ?", *keepRestaurantID)
	}
	err := query.Updates(map[string]interface{}{
		"status":     models.AssignmentCancelled,
		"updated_at": time.Now(),
	}).Error
	return rows, err
}

func (r *assignmentRepository) CountByStatus(ctx context.Context, orderID uuid.UUID, statuses ...models.AssignmentStatus) (int64, error) {
	var count int64
	err := r.conn(ctx).
		Model(&models.RestaurantAssignment{}).
		Where("order_id = ? AND status IN ?", orderID, statuses).
		Count(&count).Error
	return count, err
}

func (r *assignmentRepository) DueOrderIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.conn(ctx).
		Model(&models.RestaurantAssignment{}).
		Select("order_id").
		Where("status = ? AND expires_at <= ?", models.AssignmentPending, now).
		Group("order_id").
		Order("MIN(expires_at)").
		Limit(limit).
		Scan(&ids).Error
	return ids, err
}

func (r *assignmentRepository) ExpirePending(ctx context.Context, orderID uuid.UUID, now time.Time) ([]models.RestaurantAssignment, error) {
	var rows []models.RestaurantAssignment
	err := r.conn(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("order_id = ? AND status = ? AND expires_at <= ?", orderID, models.AssignmentPending, now).
		Updates(map[string]interface{}{
			"status":     models.AssignmentExpired,
			"updated_at": now,
		}).Error
	return rows, err
}

func (r *assignmentRepository) TriedRestaurantIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.conn(ctx).
		Model(&models.RestaurantAssignment{}).
		Where("order_id = ?", orderID).
		Distinct().
		Pluck("restaurant_id", &ids).Error
	return ids, err
}

func (r *assignmentRepository) MaxAttempt(ctx context.Context, orderID uuid.UUID) (int, error) {
	var attempt int
	err := r.conn(ctx).
		Model(&models.RestaurantAssignment{}).
		Where("order_id = ?", orderID).
		Select("COALESCE(MAX(attempt), 0)").
		Scan(&attempt).Error
	return attempt, err
}
