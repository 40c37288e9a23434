package repository

import (
	"context"
	"order_dispatch/internal/models"
	"order_dispatch/pkg/geo"
	"sort"

	trmgorm "github.com/avito-tech/go-transaction-manager/gorm"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RestaurantRepository interface {
	Create(ctx context.Context, restaurant *models.Restaurant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	// FindNearby returns active restaurants within radiusKm of center,
	// nearest first, skipping the excluded ids.
	FindNearby(ctx context.Context, center geo.Point, radiusKm float64, exclude []uuid.UUID, limit int) ([]models.RestaurantCandidate, error)
	Update(ctx context.Context, restaurant *models.Restaurant) error
}

type restaurantRepository struct {
	base
}

func NewRestaurantRepository(db *gorm.DB, getter *trmgorm.CtxGetter) RestaurantRepository {
	return &restaurantRepository{base: newBase(db, getter)}
}

func (r *restaurantRepository) Create(ctx context.Context, restaurant *models.Restaurant) error {
	return r.conn(ctx).Create(restaurant).Error
}

func (r *restaurantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	err := r.conn(ctx).First(&restaurant, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &restaurant, nil
}

func (r *restaurantRepository) FindNearby(ctx context.Context, center geo.Point, radiusKm float64, exclude []uuid.UUID, limit int) ([]models.RestaurantCandidate, error) {
	inBox, args := boxFilter("restaurants", geo.BoundingBox(center, radiusKm))

	query := r.conn(ctx).
		Where("is_active = ?", true).
		Where(inBox, args...)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}

	var restaurants []models.Restaurant
	if err := query.Find(&restaurants).Error; err != nil {
		return nil, err
	}

	return rankByDistance(restaurants, center, radiusKm, limit), nil
}

func (r *restaurantRepository) Update(ctx context.Context, restaurant *models.Restaurant) error {
	return r.conn(ctx).Save(restaurant).Error
}

// rankByDistance drops restaurants outside the radius (the SQL box is a
// superset) and sorts the rest nearest first.
func rankByDistance(restaurants []models.Restaurant, center geo.Point, radiusKm float64, limit int) []models.RestaurantCandidate {
	candidates := make([]models.RestaurantCandidate, 0, len(restaurants))
	for _, restaurant := range restaurants {
		d := geo.DistanceKm(center, geo.Point{Latitude: restaurant.Latitude, Longitude: restaurant.Longitude})
		if d > radiusKm {
			continue
		}
		candidates = append(candidates, models.RestaurantCandidate{Restaurant: restaurant, DistanceKm: d})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}
