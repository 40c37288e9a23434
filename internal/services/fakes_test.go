package services

import (
	"context"
	"errors"
	"order_dispatch/internal/models"
	"order_dispatch/internal/redis"
	"order_dispatch/internal/repository"
	"order_dispatch/pkg/geo"
	"order_dispatch/pkg/webhook"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// store is an in-memory stand-in for the database. Every fake repository
// shares one store so transactions can snapshot and restore it.
type store struct {
	mu sync.Mutex

	orders            map[uuid.UUID]models.Order
	items             map[uuid.UUID][]models.OrderItem
	restaurants       map[uuid.UUID]models.Restaurant
	assignments       []models.RestaurantAssignment
	statusHistory     []models.OrderStatusHistory
	assignmentHistory []models.AssignmentHistory
	stages            []models.PreparationStage
	deliveries        map[uuid.UUID]models.DeliveryAssignment
	locations         []models.DeliveryLocation
	rejections        []models.DeliveryRejection
	notifications     []models.Notification
	transactions      []models.PaymentTransaction
	confirmations     []models.PaymentConfirmation
	tips              []models.TipDistribution
	coordination      map[uuid.UUID]models.PaymentCoordination

	// busy marks order rows held by another transaction
	busy map[uuid.UUID]bool
}

func newStore() *store {
	return &store{
		orders:       make(map[uuid.UUID]models.Order),
		items:        make(map[uuid.UUID][]models.OrderItem),
		restaurants:  make(map[uuid.UUID]models.Restaurant),
		deliveries:   make(map[uuid.UUID]models.DeliveryAssignment),
		coordination: make(map[uuid.UUID]models.PaymentCoordination),
		busy:         make(map[uuid.UUID]bool),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySlice[T any](s []T) []T {
	return append([]T(nil), s...)
}

func (s *store) snapshot() *store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &store{
		orders:            copyMap(s.orders),
		items:             copyMap(s.items),
		restaurants:       copyMap(s.restaurants),
		assignments:       copySlice(s.assignments),
		statusHistory:     copySlice(s.statusHistory),
		assignmentHistory: copySlice(s.assignmentHistory),
		stages:            copySlice(s.stages),
		deliveries:        copyMap(s.deliveries),
		locations:         copySlice(s.locations),
		rejections:        copySlice(s.rejections),
		notifications:     copySlice(s.notifications),
		transactions:      copySlice(s.transactions),
		confirmations:     copySlice(s.confirmations),
		tips:              copySlice(s.tips),
		coordination:      copyMap(s.coordination),
	}
}

func (s *store) restore(snap *store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = snap.orders
	s.items = snap.items
	s.restaurants = snap.restaurants
	s.assignments = snap.assignments
	s.statusHistory = snap.statusHistory
	s.assignmentHistory = snap.assignmentHistory
	s.stages = snap.stages
	s.deliveries = snap.deliveries
	s.locations = snap.locations
	s.rejections = snap.rejections
	s.notifications = snap.notifications
	s.transactions = snap.transactions
	s.confirmations = snap.confirmations
	s.tips = snap.tips
	s.coordination = snap.coordination
}

// fakeTransactor serializes transactions and restores the store when fn fails.
type fakeTransactor struct {
	mu    sync.Mutex
	store *store
}

type txKey struct{}

func (t *fakeTransactor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// orders

type fakeOrderRepo struct{ *store }

var _ repository.OrderRepository = fakeOrderRepo{}

func (r fakeOrderRepo) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *order
	stored.Items = nil
	r.orders[order.ID] = stored
	return nil
}

func (r fakeOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	order.Items = copySlice(r.items[id])
	return &order, nil
}

func (r fakeOrderRepo) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r fakeOrderRepo) TryLockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	busy := r.busy[id]
	r.mu.Unlock()
	if busy {
		return nil, nil
	}
	order, err := r.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return order, err
}

func (r fakeOrderRepo) GetByCustomerID(_ context.Context, customerID uuid.UUID, limit int) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeOrderRepo) TransitionStatus(_ context.Context, id uuid.UUID, from []models.OrderStatus, to models.OrderStatus, fields map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, f := range from {
		if order.Status == f {
			matched = true
		}
	}
	if !matched {
		return false, nil
	}
	order.Status = to
	order.UpdatedAt = time.Now()
	for k, v := range fields {
		switch k {
		case "restaurant_id":
			rid := v.(uuid.UUID)
			order.RestaurantID = &rid
		default:
			at := v.(time.Time)
			switch k {
			case "accepted_at":
				order.AcceptedAt = &at
			case "preparation_started_at":
				order.PreparationStartedAt = &at
			case "ready_at":
				order.ReadyAt = &at
			case "picked_up_at":
				order.PickedUpAt = &at
			case "delivered_at":
				order.DeliveredAt = &at
			case "cancelled_at":
				order.CancelledAt = &at
			}
		}
	}
	r.orders[id] = order
	return true, nil
}

func (r fakeOrderRepo) NextOrderNumber(_ context.Context, day time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.orders {
		if o.CreatedAt.Format("20060102") == day.Format("20060102") {
			n++
		}
	}
	return repository.FormatOrderNumber(day, n+1), nil
}

type fakeItemRepo struct{ *store }

func (r fakeItemRepo) CreateBatch(_ context.Context, items []models.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		r.items[it.OrderID] = append(r.items[it.OrderID], it)
	}
	return nil
}

func (r fakeItemRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySlice(r.items[orderID]), nil
}

// restaurants

type fakeRestaurantRepo struct{ *store }

func (r fakeRestaurantRepo) Create(_ context.Context, restaurant *models.Restaurant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if restaurant.ID == uuid.Nil {
		restaurant.ID = uuid.New()
	}
	r.restaurants[restaurant.ID] = *restaurant
	return nil
}

func (r fakeRestaurantRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Restaurant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	restaurant, ok := r.restaurants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &restaurant, nil
}

func (r fakeRestaurantRepo) FindNearby(_ context.Context, center geo.Point, radiusKm float64, exclude []uuid.UUID, limit int) ([]models.RestaurantCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []models.RestaurantCandidate
	for _, restaurant := range r.restaurants {
		if !restaurant.IsActive || skip[restaurant.ID] {
			continue
		}
		d := geo.DistanceKm(center, geo.Point{Latitude: restaurant.Latitude, Longitude: restaurant.Longitude})
		if d <= radiusKm {
			out = append(out, models.RestaurantCandidate{Restaurant: restaurant, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeRestaurantRepo) Update(_ context.Context, restaurant *models.Restaurant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restaurants[restaurant.ID] = *restaurant
	return nil
}

// assignments

type fakeAssignmentRepo struct{ *store }

func (r fakeAssignmentRepo) CreateBatch(_ context.Context, assignments []models.RestaurantAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = append(r.assignments, assignments...)
	return nil
}

func (r fakeAssignmentRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) ([]models.RestaurantAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RestaurantAssignment
	for _, a := range r.assignments {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r fakeAssignmentRepo) GetPendingByRestaurant(_ context.Context, restaurantID uuid.UUID, now time.Time) ([]models.RestaurantAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RestaurantAssignment
	for _, a := range r.assignments {
		if a.RestaurantID == restaurantID && a.Status == models.AssignmentPending && a.ExpiresAt.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r fakeAssignmentRepo) Respond(_ context.Context, orderID, restaurantID uuid.UUID, status models.AssignmentStatus, notes string, now time.Time) (*models.RestaurantAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.assignments {
		if a.OrderID == orderID && a.RestaurantID == restaurantID && a.Status == models.AssignmentPending && a.ExpiresAt.After(now) {
			a.Status = status
			a.RespondedAt = &now
			a.ResponseNotes = notes
			r.assignments[i] = a
			return &a, nil
		}
	}
	return nil, nil
}

func (r fakeAssignmentRepo) CancelPending(_ context.Context, orderID uuid.UUID, keep *uuid.UUID) ([]models.RestaurantAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RestaurantAssignment
	for i, a := range r.assignments {
		if a.OrderID != orderID || a.Status != models.AssignmentPending {
			continue
		}
		if keep != nil && a.RestaurantID == *keep {
			continue
		}
		a.Status = models.AssignmentCancelled
		r.assignments[i] = a
		out = append(out, a)
	}
	return out, nil
}

func (r fakeAssignmentRepo) CountByStatus(_ context.Context, orderID uuid.UUID, statuses ...models.AssignmentStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.assignments {
		if a.OrderID != orderID {
			continue
		}
		for _, st := range statuses {
			if a.Status == st {
				n++
			}
		}
	}
	return n, nil
}

func (r fakeAssignmentRepo) DueOrderIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, a := range r.assignments {
		if len(out) == limit {
			break
		}
		if a.Status == models.AssignmentPending && !a.ExpiresAt.After(now) && !seen[a.OrderID] {
			seen[a.OrderID] = true
			out = append(out, a.OrderID)
		}
	}
	return out, nil
}

func (r fakeAssignmentRepo) ExpirePending(_ context.Context, orderID uuid.UUID, now time.Time) ([]models.RestaurantAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RestaurantAssignment
	for i, a := range r.assignments {
		if a.OrderID == orderID && a.Status == models.AssignmentPending && !a.ExpiresAt.After(now) {
			a.Status = models.AssignmentExpired
			r.assignments[i] = a
			out = append(out, a)
		}
	}
	return out, nil
}

func (r fakeAssignmentRepo) TriedRestaurantIDs(_ context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, a := range r.assignments {
		if a.OrderID == orderID && !seen[a.RestaurantID] {
			seen[a.RestaurantID] = true
			out = append(out, a.RestaurantID)
		}
	}
	return out, nil
}

func (r fakeAssignmentRepo) MaxAttempt(_ context.Context, orderID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, a := range r.assignments {
		if a.OrderID == orderID && a.Attempt > max {
			max = a.Attempt
		}
	}
	return max, nil
}

// history

type fakeHistoryRepo struct{ *store }

func (r fakeHistoryRepo) RecordStatus(_ context.Context, entry *models.OrderStatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusHistory = append(r.statusHistory, *entry)
	return nil
}

func (r fakeHistoryRepo) RecordAssignments(_ context.Context, entries []models.AssignmentHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignmentHistory = append(r.assignmentHistory, entries...)
	return nil
}

func (r fakeHistoryRepo) GetStatusHistory(_ context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.OrderStatusHistory
	for _, h := range r.statusHistory {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r fakeHistoryRepo) GetAssignmentHistory(_ context.Context, orderID uuid.UUID) ([]models.AssignmentHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AssignmentHistory
	for _, h := range r.assignmentHistory {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

// preparation

type fakePreparationRepo struct{ *store }

func (r fakePreparationRepo) CreateBatch(_ context.Context, stages []models.PreparationStage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range stages {
		if st.ID == uuid.Nil {
			st.ID = uuid.New()
		}
		r.stages = append(r.stages, st)
	}
	return nil
}

func (r fakePreparationRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) ([]models.PreparationStage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PreparationStage
	for _, st := range r.stages {
		if st.OrderID == orderID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageOrder < out[j].StageOrder })
	return out, nil
}

func (r fakePreparationRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.StageStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, st := range r.stages {
		if st.ID == id {
			st.Status = status
			r.stages[i] = st
		}
	}
	return nil
}

// deliveries

type fakeDeliveryRepo struct{ *store }

func (r fakeDeliveryRepo) CreateAssignment(_ context.Context, a *models.DeliveryAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries[a.ID] = *a
	return nil
}

func (r fakeDeliveryRepo) GetAssignment(_ context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.deliveries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r fakeDeliveryRepo) HasActiveAssignment(_ context.Context, orderID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.deliveries {
		if a.OrderID == orderID && (a.Status == models.DeliveryAssigned || a.Status == models.DeliveryPickedUp) {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeDeliveryRepo) TransitionStatus(_ context.Context, id uuid.UUID, from []models.DeliveryStatus, to models.DeliveryStatus, fields map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.deliveries[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if a.Status == f {
			a.Status = to
			r.deliveries[id] = a
			return true, nil
		}
	}
	return false, nil
}

func (r fakeDeliveryRepo) AppendLocation(_ context.Context, loc *models.DeliveryLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations = append(r.locations, *loc)
	return nil
}

func (r fakeDeliveryRepo) UpdateCurrentLocation(_ context.Context, id uuid.UUID, lat, lng float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.deliveries[id]
	a.CurrentLatitude, a.CurrentLongitude, a.LastLocationAt = &lat, &lng, &at
	r.deliveries[id] = a
	return nil
}

func (r fakeDeliveryRepo) GetLocations(_ context.Context, assignmentID uuid.UUID, limit int) ([]models.DeliveryLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DeliveryLocation
	for i := len(r.locations) - 1; i >= 0 && len(out) < limit; i-- {
		if r.locations[i].DeliveryAssignmentID == assignmentID {
			out = append(out, r.locations[i])
		}
	}
	return out, nil
}

func (r fakeDeliveryRepo) MarkNearbyAlertSent(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.deliveries[id]
	if a.NearbyAlertSent {
		return false, nil
	}
	a.NearbyAlertSent = true
	r.deliveries[id] = a
	return true, nil
}

func (r fakeDeliveryRepo) CreateRejection(_ context.Context, rejection *models.DeliveryRejection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections = append(r.rejections, *rejection)
	return nil
}

func (r fakeDeliveryRepo) FindPickupCandidates(_ context.Context, center geo.Point, radiusKm float64, limit int) ([]models.PickupCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PickupCandidate
	for _, o := range r.orders {
		if o.Status != models.OrderReadyForPickup || o.RestaurantID == nil {
			continue
		}
		restaurant := r.restaurants[*o.RestaurantID]
		d := geo.DistanceKm(center, geo.Point{Latitude: restaurant.Latitude, Longitude: restaurant.Longitude})
		if d <= radiusKm {
			out = append(out, models.PickupCandidate{OrderID: o.ID, RestaurantID: restaurant.ID, DistanceKm: d})
		}
	}
	return out, nil
}

// notifications

type fakeNotificationRepo struct{ *store }

func (r fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r fakeNotificationRepo) GetByRecipient(_ context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && (!unreadOnly || !n.IsRead) && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r fakeNotificationRepo) MarkAsRead(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.notifications {
		if n.ID == id && !n.IsRead {
			r.notifications[i].IsRead = true
			r.notifications[i].ReadAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (r fakeNotificationRepo) MarkAllAsRead(_ context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i, notification := range r.notifications {
		if notification.RecipientID == recipientID && !notification.IsRead {
			r.notifications[i].IsRead = true
			r.notifications[i].ReadAt = &at
			n++
		}
	}
	return n, nil
}

// payments

type fakePaymentRepo struct{ *store }

func (r fakePaymentRepo) CreateTransaction(_ context.Context, txn *models.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions = append(r.transactions, *txn)
	return nil
}

func (r fakePaymentRepo) GetTransactions(_ context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PaymentTransaction
	for _, t := range r.transactions {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r fakePaymentRepo) CompleteTransaction(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.transactions {
		if t.ID == id {
			r.transactions[i].Status = models.TransactionCompleted
		}
	}
	return nil
}

func (r fakePaymentRepo) CreateConfirmation(_ context.Context, c *models.PaymentConfirmation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmations = append(r.confirmations, *c)
	return nil
}

func (r fakePaymentRepo) GetConfirmation(_ context.Context, id uuid.UUID) (*models.PaymentConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.confirmations {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakePaymentRepo) GetConfirmations(_ context.Context, orderID uuid.UUID) ([]models.PaymentConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PaymentConfirmation
	for _, c := range r.confirmations {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r fakePaymentRepo) Confirm(_ context.Context, id, by uuid.UUID, method string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.confirmations {
		if c.ID == id && c.Status == models.ConfirmationPending {
			c.Status = models.ConfirmationConfirmed
			c.ConfirmedBy = &by
			c.ConfirmationMethod = method
			c.ConfirmedAt = &at
			r.confirmations[i] = c
			return true, nil
		}
	}
	return false, nil
}

func (r fakePaymentRepo) CountPendingConfirmations(_ context.Context, orderID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.confirmations {
		if c.OrderID == orderID && c.Status == models.ConfirmationPending {
			n++
		}
	}
	return n, nil
}

func (r fakePaymentRepo) CreateTipDistribution(_ context.Context, tip *models.TipDistribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tips = append(r.tips, *tip)
	return nil
}

func (r fakePaymentRepo) GetTipDistributions(_ context.Context, orderID uuid.UUID) ([]models.TipDistribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TipDistribution
	for _, t := range r.tips {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r fakePaymentRepo) GetCoordination(_ context.Context, orderID uuid.UUID) (*models.PaymentCoordination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.coordination[orderID]; ok {
		return &c, nil
	}
	return &models.PaymentCoordination{
		OrderID:       orderID,
		PaymentStatus: models.CoordinationPending,
		TotalPaid:     decimal.Zero,
		TotalRefunded: decimal.Zero,
		TipAmount:     decimal.Zero,
	}, nil
}

func (r fakePaymentRepo) SaveCoordination(_ context.Context, c *models.PaymentCoordination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coordination[c.OrderID] = *c
	return nil
}

// redis stand-ins

type fakeKeys struct {
	mu   sync.Mutex
	vals map[string]string
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{vals: make(map[string]string)}
}

func (k *fakeKeys) AcquireKey(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.vals[key]; ok {
		return false, nil
	}
	k.vals[key] = value
	return true, nil
}

func (k *fakeKeys) GetKey(_ context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.vals[key]
	if !ok {
		return "", redis.ErrCacheMiss
	}
	return v, nil
}

func (k *fakeKeys) SetKey(_ context.Context, key, value string, _ time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.vals[key] = value
	return nil
}

func (k *fakeKeys) ReleaseKey(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.vals, key)
	return nil
}

func (k *fakeKeys) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	return k.AcquireKey(ctx, "throttle:"+key, "1", window)
}

func (k *fakeKeys) has(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.vals[key]
	return ok
}

type fakeCache struct {
	mu        sync.Mutex
	recent    map[uuid.UUID][]models.Order
	locations map[uuid.UUID]redis.DriverLocation
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		recent:    make(map[uuid.UUID][]models.Order),
		locations: make(map[uuid.UUID]redis.DriverLocation),
	}
}

func (c *fakeCache) SetRecentOrders(_ context.Context, customerID uuid.UUID, orders interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recent[customerID] = orders.([]models.Order)
	return nil
}

func (c *fakeCache) GetRecentOrders(_ context.Context, customerID uuid.UUID, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	orders, ok := c.recent[customerID]
	if !ok {
		return redis.ErrCacheMiss
	}
	*dest.(*[]models.Order) = orders
	return nil
}

func (c *fakeCache) DeleteRecentOrders(_ context.Context, customerID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.recent, customerID)
	return nil
}

func (c *fakeCache) SetDriverLocation(_ context.Context, loc *redis.DriverLocation, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locations[loc.AssignmentID] = *loc
	return nil
}

func (c *fakeCache) GetDriverLocation(_ context.Context, assignmentID uuid.UUID) (*redis.DriverLocation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.locations[assignmentID]
	if !ok {
		return nil, redis.ErrCacheMiss
	}
	return &loc, nil
}

type fakeWebhooks struct {
	mu     sync.Mutex
	events map[string]*webhook.Event
}

func (w *fakeWebhooks) Send(_ context.Context, url string, event *webhook.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.events == nil {
		w.events = make(map[string]*webhook.Event)
	}
	w.events[event.IdempotencyKey] = event
	return nil
}

func (w *fakeWebhooks) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}
