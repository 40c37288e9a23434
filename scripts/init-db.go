package main

import (
	"context"
	"flag"
	"fmt"
	"order_dispatch/internal/config"
	"order_dispatch/internal/database"
	"order_dispatch/internal/logger"
	"order_dispatch/internal/migrations"
	"order_dispatch/internal/repository"
	"order_dispatch/internal/services"

	"github.com/rs/zerolog/log"
)

// demo restaurants around central Almaty
var seedRestaurants = []services.RegisterRestaurantRequest{
	{
		Name:      "Navat Teahouse",
		Email:     "orders@navat.example",
		Phone:     "+77010000001",
		Address:   "Abay Ave 10",
		Latitude:  43.2389,
		Longitude: 76.9455,
	},
	{
		Name:      "Lagman House",
		Email:     "kitchen@lagman.example",
		Phone:     "+77010000002",
		Address:   "Dostyk Ave 52",
		Latitude:  43.2442,
		Longitude: 76.9571,
	},
	{
		Name:      "Samsa Corner",
		Email:     "hello@samsa.example",
		Phone:     "+77010000003",
		Address:   "Tole Bi St 81",
		Latitude:  43.2527,
		Longitude: 76.9212,
	},
}

func main() {
	reset := flag.Bool("reset", false, "drop every table before migrating")
	flag.Parse()

	cfg := config.Load()
	logger.Setup(cfg.LogLevel, false)

	fmt.Println("Initializing database...")
	db, err := database.Initialize(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if *reset {
		fmt.Println("Dropping existing tables...")
		if err := db.Migrator().DropTable(migrations.Models()...); err != nil {
			log.Warn().Err(err).Msg("error dropping tables")
		}
	}

	fmt.Println("Creating tables...")
	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	fmt.Println("Registering demo restaurants...")
	restaurants := services.NewRestaurantService(repository.NewRestaurantRepository(db, nil))
	ctx := context.Background()
	for i := range seedRestaurants {
		registered, err := restaurants.Register(ctx, &seedRestaurants[i])
		if err != nil {
			log.Warn().Err(err).Str("name", seedRestaurants[i].Name).Msg("failed to register restaurant")
			continue
		}
		fmt.Printf("  %-16s id=%s key=%s\n", registered.Restaurant.Name, registered.Restaurant.ID, registered.APIKey)
	}

	fmt.Println("Database initialization completed successfully!")
	fmt.Println("API keys are shown only once; store them now.")
}
