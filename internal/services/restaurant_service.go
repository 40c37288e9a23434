package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"order_dispatch/internal/apperrors"
	"order_dispatch/internal/models"
	"order_dispatch/internal/repository"
	"order_dispatch/pkg/geo"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyPrefix = "rk_"

type RegisterRestaurantRequest struct {
	Name       string  `json:"name" validate:"required,max=255"`
	Email      string  `json:"email" validate:"required,email"`
	Phone      string  `json:"phone" validate:"omitempty,max=32"`
	Address    string  `json:"address"`
	Latitude   float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude  float64 `json:"longitude" validate:"min=-180,max=180"`
	WebhookURL string  `json:"webhook_url" validate:"omitempty,url"`
}

// RegisteredRestaurant carries the plaintext API key, returned only once.
type RegisteredRestaurant struct {
	Restaurant *models.Restaurant `json:"restaurant"`
	APIKey     string             `json:"api_key"`
}

type RestaurantService interface {
	Register(ctx context.Context, req *RegisterRestaurantRequest) (*RegisteredRestaurant, error)
	Authenticate(ctx context.Context, restaurantID uuid.UUID, apiKey string) (*models.Restaurant, error)
	GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
}

type restaurantService struct {
	repo     repository.RestaurantRepository
	validate *validator.Validate
	cost     int
}

func NewRestaurantService(repo repository.RestaurantRepository) RestaurantService {
	return &restaurantService{
		repo:     repo,
		validate: validator.New(),
		cost:     bcrypt.DefaultCost,
	}
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

func (s *restaurantService) Register(ctx context.Context, req *RegisterRestaurantRequest) (*RegisteredRestaurant, error) {
	const op = "RestaurantService.Register"

	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.WithCode(op, err, apperrors.EINVALID)
	}
	if !(geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}).Valid() {
		return nil, apperrors.Invalid(op, "coordinates are out of range")
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), s.cost)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}

	restaurant := &models.Restaurant{
		ID:         uuid.New(),
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		WebhookURL: req.WebhookURL,
		APIKeyHash: string(hash),
		IsActive:   true,
	}
	if err := s.repo.Create(ctx, restaurant); err != nil {
		return nil, apperrors.OpError(op, err)
	}

	log.Ctx(ctx).Info().Str("restaurant_id", restaurant.ID.String()).Str("name", restaurant.Name).Msg("restaurant registered")
	return &RegisteredRestaurant{Restaurant: restaurant, APIKey: apiKey}, nil
}

func (s *restaurantService) Authenticate(ctx context.Context, restaurantID uuid.UUID, apiKey string) (*models.Restaurant, error) {
	const op = "RestaurantService.Authenticate"

	if apiKey == "" {
		return nil, apperrors.Unauthorized(op, "missing restaurant credentials")
	}
	restaurant, err := s.repo.GetByID(ctx, restaurantID)
	if err != nil {
		if apperrors.Is(apperrors.OpError(op, err), apperrors.ENOTFOUND) {
			return nil, apperrors.Unauthorized(op, "invalid restaurant credentials")
		}
		return nil, apperrors.OpError(op, err)
	}
	if !restaurant.IsActive {
		return nil, apperrors.Unauthorized(op, "restaurant is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(restaurant.APIKeyHash), []byte(apiKey)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperrors.Unauthorized(op, "invalid restaurant credentials")
		}
		return nil, apperrors.OpError(op, err)
	}
	return restaurant, nil
}

func (s *restaurantService) GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	const op = "RestaurantService.GetRestaurant"

	restaurant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.OpError(op, err)
	}
	return restaurant, nil
}
