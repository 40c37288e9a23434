package services

import (
	"context"
	"errors"
	"fmt"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/models"
	"order_dispatch/internal/redis"
	"order_dispatch/internal/repository"
	"order_dispatch/pkg/geo"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultLocationHistory = 50
	maxLocationHistory     = 500
	defaultPickupRadiusKm  = 5
	maxPickupCandidates    = 20
)

type DeliveryConfig struct {
	NearbyMeters   float64
	LocationTTL    time.Duration
	UpdateThrottle time.Duration
}

type LocationUpdate struct {
	AssignmentID uuid.UUID `json:"-"`
	DriverID     uuid.UUID `json:"driver_id" validate:"required"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     *float64  `json:"accuracy"`
	Speed        *float64  `json:"speed"`
	Heading      *float64  `json:"heading"`
}

type DeliveryService interface {
	AssignDriver(ctx context.Context, orderID, driverID uuid.UUID) (*models.DeliveryAssignment, error)
	UpdateLocation(ctx context.Context, update LocationUpdate) (*models.DeliveryLocation, error)
	GetCurrentLocation(ctx context.Context, assignmentID uuid.UUID) (*redis.DriverLocation, error)
	GetLocationHistory(ctx context.Context, assignmentID uuid.UUID, limit int) ([]models.DeliveryLocation, error)
	PickUp(ctx context.Context, assignmentID, driverID uuid.UUID) (*models.DeliveryAssignment, error)
	CompleteDelivery(ctx context.Context, assignmentID, driverID uuid.UUID) (*models.DeliveryAssignment, error)
	RejectDelivery(ctx context.Context, assignmentID, driverID uuid.UUID, reason string) error
	FindNearbyOrders(ctx context.Context, center geo.Point, radiusKm float64) ([]models.PickupCandidate, error)
}

type deliveryService struct {
	cfg           DeliveryConfig
	trm           Transactor
	orders        repository.OrderRepository
	deliveries    repository.DeliveryRepository
	locations     LocationCache
	keys          KeyStore
	notifications NotificationService
	realtime      RealtimePublisher
	status        *statusWriter
	now           func() time.Time
}

func NewDeliveryService(
	cfg DeliveryConfig,
	trm Transactor,
	orders repository.OrderRepository,
	deliveries repository.DeliveryRepository,
	history repository.HistoryRepository,
	locations LocationCache,
	keys KeyStore,
	notifications NotificationService,
	rt RealtimePublisher,
) DeliveryService {
	if cfg.NearbyMeters <= 0 {
		cfg.NearbyMeters = 500
	}
	if cfg.LocationTTL <= 0 {
		cfg.LocationTTL = 10 * time.Minute
	}
	if cfg.UpdateThrottle <= 0 {
		cfg.UpdateThrottle = time.Minute
	}
	return &deliveryService{
		cfg:           cfg,
		trm:           trm,
		orders:        orders,
		deliveries:    deliveries,
		locations:     locations,
		keys:          keys,
		notifications: notifications,
		realtime:      rt,
		status:        &statusWriter{orders: orders, history: history, now: time.Now},
		now:           time.Now,
	}
}

func (s *deliveryService) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	const op = "DeliveryService.AssignDriver"

	if driverID == uuid.Nil {
		return nil, apperrors.Invalid(op, "driver is required")
	}

	var assignment *models.DeliveryAssignment
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		order, err := s.orders.LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderReadyForPickup {
			return apperrors.Conflict(op, fmt.Sprintf("order in status %s is not ready for pickup", order.Status))
		}
		active, err := s.deliveries.HasActiveAssignment(ctx, orderID)
		if err != nil {
			return err
		}
		if active {
			return apperrors.Conflict(op, "order already has an active delivery")
		}

		now := s.now()
		assignment = &models.DeliveryAssignment{
			ID:        uuid.New(),
			OrderID:   orderID,
			DriverID:  driverID,
			Status:    models.DeliveryAssigned,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.deliveries.CreateAssignment(ctx, assignment)
	})
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	log.Ctx(ctx).Info().
		Str("order_id", orderID.String()).
		Str("driver_id", driverID.String()).
		Msg("driver assigned")
	return assignment, nil
}

// driverAssignment loads the assignment and checks it belongs to driverID.
func (s *deliveryService) driverAssignment(ctx context.Context, op string, assignmentID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	assignment, err := s.deliveries.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	if assignment.DriverID != driverID {
		return nil, apperrors.Unauthorized(op, "delivery is assigned to another driver")
	}
	return assignment, nil
}

func (s *deliveryService) UpdateLocation(ctx context.Context, update LocationUpdate) (*models.DeliveryLocation, error) {
	const op = "DeliveryService.UpdateLocation"

	point := geo.Point{Latitude: update.Latitude, Longitude: update.Longitude}
	if !point.Valid() {
		return nil, apperrors.Invalid(op, "coordinates are out of range")
	}

	assignment, err := s.driverAssignment(ctx, op, update.AssignmentID, update.DriverID)
	if err != nil {
		return nil, err
	}
	if assignment.Status != models.DeliveryAssigned && assignment.Status != models.DeliveryPickedUp {
		return nil, apperrors.Conflict(op, fmt.Sprintf("delivery in status %s no longer accepts locations", assignment.Status))
	}

	now := s.now()
	location := &models.DeliveryLocation{
		ID:                   uuid.New(),
		DeliveryAssignmentID: assignment.ID,
		Latitude:             update.Latitude,
		Longitude:            update.Longitude,
		Accuracy:             update.Accuracy,
		Speed:                update.Speed,
		Heading:              update.Heading,
		RecordedAt:           now,
	}
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.deliveries.AppendLocation(ctx, location); err != nil {
			return err
		}
		return s.deliveries.UpdateCurrentLocation(ctx, assignment.ID, update.Latitude, update.Longitude, now)
	})
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	current := &redis.DriverLocation{
		AssignmentID: assignment.ID,
		Latitude:     update.Latitude,
		Longitude:    update.Longitude,
		RecordedAt:   now,
	}
	if s.locations != nil {
		if err := s.locations.SetDriverLocation(ctx, current, s.cfg.LocationTTL); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("assignment_id", assignment.ID.String()).Msg("failed to cache driver location")
		}
	}
	if s.realtime != nil {
		if err := s.realtime.Publish(ctx, assignment.OrderID, "driver_location", current); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to push driver location")
		}
	}

	s.notifyLocation(ctx, assignment, point)
	return location, nil
}

// notifyLocation sends the throttled location_update and the one-time
// driver_nearby notification to the customer.
func (s *deliveryService) notifyLocation(ctx context.Context, assignment *models.DeliveryAssignment, point geo.Point) {
	order, err := s.orders.GetByID(ctx, assignment.OrderID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("order_id", assignment.OrderID.String()).Msg("failed to load order for location notification")
		return
	}
	orderID := order.ID

	allowed, err := s.keys.Allow(ctx, "location_update:"+assignment.ID.String(), s.cfg.UpdateThrottle)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("location throttle check failed")
	}
	if allowed {
		s.notify(ctx, &models.Notification{
			RecipientID:   order.CustomerID,
			RecipientType: models.RecipientCustomer,
			OrderID:       &orderID,
			Type:          models.NotificationLocationUpdate,
			Title:         "Driver location updated",
			Message:       "Your driver's location has been updated",
			Data:          jsonData(map[string]float64{"latitude": point.Latitude, "longitude": point.Longitude}),
		})
	}

	if assignment.NearbyAlertSent || !order.HasDeliveryLocation() {
		return
	}
	destination := geo.Point{Latitude: *order.DeliveryLatitude, Longitude: *order.DeliveryLongitude}
	distance := geo.DistanceMeters(point, destination)
	if distance > s.cfg.NearbyMeters {
		return
	}
	flipped, err := s.deliveries.MarkNearbyAlertSent(ctx, assignment.ID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to flag nearby alert")
		return
	}
	if !flipped {
		return
	}
	s.notify(ctx, &models.Notification{
		RecipientID:   order.CustomerID,
		RecipientType: models.RecipientCustomer,
		OrderID:       &orderID,
		Type:          models.NotificationDriverNearby,
		Title:         "Your driver is nearby",
		Message:       fmt.Sprintf("Your driver is about %.0f meters away", distance),
		Data:          jsonData(map[string]float64{"distance_meters": distance}),
	})
}

func (s *deliveryService) notify(ctx context.Context, n *models.Notification) {
	if err := s.notifications.Notify(ctx, n); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("type", string(n.Type)).Msg("failed to send delivery notification")
	}
}

func (s *deliveryService) GetCurrentLocation(ctx context.Context, assignmentID uuid.UUID) (*redis.DriverLocation, error) {
	const op = "DeliveryService.GetCurrentLocation"

	if s.locations != nil {
		loc, err := s.locations.GetDriverLocation(ctx, assignmentID)
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			log.Ctx(ctx).Warn().Err(err).Msg("driver location cache read failed")
		}
	}

	assignment, err := s.deliveries.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	if assignment.CurrentLatitude == nil || assignment.CurrentLongitude == nil || assignment.LastLocationAt == nil {
		return nil, apperrors.NotFound(op, "no location reported yet")
	}
	return &redis.DriverLocation{
		AssignmentID: assignment.ID,
		Latitude:     *assignment.CurrentLatitude,
		Longitude:    *assignment.CurrentLongitude,
		RecordedAt:   *assignment.LastLocationAt,
	}, nil
}

func (s *deliveryService) GetLocationHistory(ctx context.Context, assignmentID uuid.UUID, limit int) ([]models.DeliveryLocation, error) {
	const op = "DeliveryService.GetLocationHistory"

	if limit <= 0 {
		limit = defaultLocationHistory
	}
	if limit > maxLocationHistory {
		limit = maxLocationHistory
	}
	if _, err := s.deliveries.GetAssignment(ctx, assignmentID); err != nil {
		return nil, apperrors.OpError(op, err)
	}
	locations, err := s.deliveries.GetLocations(ctx, assignmentID, limit)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return locations, nil
}

func (s *deliveryService) PickUp(ctx context.Context, assignmentID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	const op = "DeliveryService.PickUp"

	assignment, err := s.driverAssignment(ctx, op, assignmentID, driverID)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	now := s.now()
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		ok, err := s.deliveries.TransitionStatus(ctx, assignmentID,
			[]models.DeliveryStatus{models.DeliveryAssigned}, models.DeliveryPickedUp,
			map[string]interface{}{"picked_up_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Conflict(op, "delivery is not waiting for pickup")
		}
		order, err = s.orders.LockByID(ctx, assignment.OrderID)
		if err != nil {
			return err
		}
		return s.status.apply(ctx, order, models.OrderOnTheWay, changeMeta{
			source: models.ChangedByDelivery,
			by:     &driverID,
			notes:  "picked up by driver",
		}, nil)
	})
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	orderID := order.ID
	if order.RestaurantID != nil {
		s.notify(ctx, &models.Notification{
			RecipientID:   *order.RestaurantID,
			RecipientType: models.RecipientRestaurant,
			OrderID:       &orderID,
			Type:          models.NotificationOrderPickedUp,
			Title:         "Order picked up",
			Message:       fmt.Sprintf("Order %s was picked up by the driver", order.OrderNumber),
		})
	}
	s.notify(ctx, &models.Notification{
		RecipientID:   order.CustomerID,
		RecipientType: models.RecipientCustomer,
		OrderID:       &orderID,
		Type:          models.NotificationDeliveryStarted,
		Title:         "Delivery started",
		Message:       models.OrderOnTheWay.Message(),
	})

	assignment.Status = models.DeliveryPickedUp
	assignment.PickedUpAt = &now
	return assignment, nil
}

func (s *deliveryService) CompleteDelivery(ctx context.Context, assignmentID, driverID uuid.UUID) (*models.DeliveryAssignment, error) {
	const op = "DeliveryService.CompleteDelivery"

	assignment, err := s.driverAssignment(ctx, op, assignmentID, driverID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		ok, err := s.deliveries.TransitionStatus(ctx, assignmentID,
			[]models.DeliveryStatus{models.DeliveryPickedUp}, models.DeliveryDelivered,
			map[string]interface{}{"delivered_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Conflict(op, "delivery has not been picked up")
		}
		order, err := s.orders.LockByID(ctx, assignment.OrderID)
		if err != nil {
			return err
		}
		return s.status.apply(ctx, order, models.OrderDelivered, changeMeta{
			source: models.ChangedByDelivery,
			by:     &driverID,
			notes:  "delivered",
		}, nil)
	})
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	log.Ctx(ctx).Info().Str("assignment_id", assignmentID.String()).Msg("delivery completed")
	assignment.Status = models.DeliveryDelivered
	assignment.DeliveredAt = &now
	return assignment, nil
}

func (s *deliveryService) RejectDelivery(ctx context.Context, assignmentID, driverID uuid.UUID, reason string) error {
	const op = "DeliveryService.RejectDelivery"

	assignment, err := s.driverAssignment(ctx, op, assignmentID, driverID)
	if err != nil {
		return err
	}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		ok, err := s.deliveries.TransitionStatus(ctx, assignmentID,
			[]models.DeliveryStatus{models.DeliveryAssigned}, models.DeliveryRejected, nil)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Conflict(op, "only an unpicked delivery can be rejected")
		}
		return s.deliveries.CreateRejection(ctx, &models.DeliveryRejection{
			ID:                   uuid.New(),
			DeliveryAssignmentID: assignmentID,
			OrderID:              assignment.OrderID,
			DriverID:             driverID,
			Reason:               reason,
			CreatedAt:            s.now(),
		})
	})
	if err != nil {
		return apperrors.OpError(op, err)
	}

	log.Ctx(ctx).Info().
		Str("assignment_id", assignmentID.String()).
		Str("reason", reason).
		Msg("delivery rejected")
	return nil
}

func (s *deliveryService) FindNearbyOrders(ctx context.Context, center geo.Point, radiusKm float64) ([]models.PickupCandidate, error) {
	const op = "DeliveryService.FindNearbyOrders"

	if !center.Valid() {
		return nil, apperrors.Invalid(op, "coordinates are out of range")
	}
	if radiusKm <= 0 {
		radiusKm = defaultPickupRadiusKm
	}
	candidates, err := s.deliveries.FindPickupCandidates(ctx, center, radiusKm, maxPickupCandidates)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return candidates, nil
}
