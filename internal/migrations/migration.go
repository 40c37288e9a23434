package migrations

import (
	"fmt"
	"order_dispatch/internal/models"
	"order_dispatch/internal/realtime"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Models lists every table managed by AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&models.Restaurant{},
		&models.Order{},
		&models.OrderItem{},
		&models.RestaurantAssignment{},
		&models.OrderStatusHistory{},
		&models.AssignmentHistory{},
		&models.PreparationStage{},
		&models.DeliveryAssignment{},
		&models.DeliveryLocation{},
		&models.DeliveryRejection{},
		&models.Notification{},
		&models.PaymentTransaction{},
		&models.PaymentConfirmation{},
		&models.TipDistribution{},
		&models.PaymentCoordination{},
	}
}

// statements run after AutoMigrate. Each one is idempotent.
var statements = []string{
	// at most one restaurant may hold an order
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_restaurant_assignments_accepted
		ON restaurant_assignments (order_id) WHERE status = 'accepted'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_restaurant_assignments_order_restaurant
		ON restaurant_assignments (order_id, restaurant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_restaurant_assignments_pending_expiry
		ON restaurant_assignments (expires_at) WHERE status = 'pending'`,

	`CREATE OR REPLACE FUNCTION notify_order_status_change() RETURNS trigger AS $$
	BEGIN
		IF NEW.status IS DISTINCT FROM OLD.status THEN
			PERFORM pg_notify('` + realtime.StatusChannel + `', json_build_object(
				'order_id', NEW.id,
				'customer_id', NEW.customer_id,
				'old_status', OLD.status,
				'new_status', NEW.status,
				'changed_at', NEW.updated_at
			)::text);
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS orders_status_change ON orders`,
	`CREATE TRIGGER orders_status_change
		AFTER UPDATE OF status ON orders
		FOR EACH ROW EXECUTE FUNCTION notify_order_status_change()`,
}

// RunMigrations brings the schema up to date, including the indexes and
// the status-change trigger gorm cannot express.
func RunMigrations(db *gorm.DB) error {
	log.Info().Msg("running database migrations")

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for i, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}

	log.Info().Int("tables", len(Models())).Msg("database migrations completed")
	return nil
}
