package repository

import (
	"context"
	"order_dispatch/internal/models"
	"order_dispatch/pkg/geo"
	"sort"
	"time"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeliveryRepository interface {
	CreateAssignment(ctx context.Context, assignment *models.DeliveryAssignment) error
	GetAssignment(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
	HasActiveAssignment(ctx context.Context, orderID uuid.UUID) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []models.DeliveryStatus, to models.DeliveryStatus, fields map[string]interface{}) (bool, error)
	AppendLocation(ctx context.Context, location *models.DeliveryLocation) error
	UpdateCurrentLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error
	GetLocations(ctx context.Context, assignmentID uuid.UUID, limit int) ([]models.DeliveryLocation, error)
	// MarkNearbyAlertSent flips the proximity flag and reports whether this
	// call was the one that flipped it.
	MarkNearbyAlertSent(ctx context.Context, id uuid.UUID) (bool, error)
	CreateRejection(ctx context.Context, rejection *models.DeliveryRejection) error
	FindPickupCandidates(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]models.PickupCandidate, error)
}

type deliveryRepository struct {
	base
}

func NewDeliveryRepository(db *gorm.DB, getter *trmgorm.CtxGetter) DeliveryRepository {
	return &deliveryRepository{base: newBase(db, getter)}
}

func (r *deliveryRepository) CreateAssignment(ctx context.Context, assignment *models.DeliveryAssignment) error {
	return r.conn(ctx).Create(assignment).Error
}

func (r *deliveryRepository) GetAssignment(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	err := r.conn(ctx).First(&assignment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *deliveryRepository) HasActiveAssignment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.conn(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("order_id = ? AND status IN ?", orderID, models.ActiveDeliveryStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *deliveryRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.DeliveryStatus, to models.DeliveryStatus, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.conn(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *deliveryRepository) AppendLocation(ctx context.Context, location *models.DeliveryLocation) error {
	return r.conn(ctx).Create(location).Error
}

func (r *deliveryRepository) UpdateCurrentLocation(ctx context.Context, id uuid.UUID, lat, lng float64, at time.Time) error {
	return r.conn(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_latitude":  lat,
			"current_longitude": lng,
			"last_location_at":  at,
			"updated_at":        at,
		}).Error
}

func (r *deliveryRepository) GetLocations(ctx context.Context, assignmentID uuid.UUID, limit int) ([]models.DeliveryLocation, error) {
	var locations []models.DeliveryLocation
	err := r.conn(ctx).
		Where("delivery_assignment_id = ?", assignmentID).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&locations).Error
	return locations, err
}

func (r *deliveryRepository) MarkNearbyAlertSent(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.conn(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ? AND nearby_alert_sent = ?", id, false).
		Update("nearby_alert_sent", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *deliveryRepository) CreateRejection(ctx context.Context, rejection *models.DeliveryRejection) error {
	return r.conn(ctx).Create(rejection).Error
}

func (r *deliveryRepository) FindPickupCandidates(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]models.PickupCandidate, error) {
	inBox, args := boxFilter("restaurants", geo.BoundingBox(center, radiusKm))

	var rows []models.PickupCandidate
	err := r.conn(ctx).
		Table("orders").
		Select(`orders.id AS order_id, orders.order_number, orders.delivery_address,
			restaurants.id AS restaurant_id, restaurants.name AS restaurant_name,
			restaurants.latitude, restaurants.longitude`).
		Joins("JOIN restaurants ON restaurants.id = orders.restaurant_id").
		Where("orders.status = ?", models.OrderReadyForPickup).
		Where(inBox, args...).
		Where("NOT EXISTS (SELECT 1 FROM delivery_assignments da WHERE da.order_id = orders.id AND da.status IN ?)",
			models.ActiveDeliveryStatuses).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	candidates := rows[:0]
	for _, row := range rows {
		row.DistanceKm = geo.DistanceKm(center, geo.Point{Latitude: row.Latitude, Longitude: row.Longitude})
		if row.DistanceKm <= radiusKm {
			candidates = append(candidates, row)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
