package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	activitydomain "github.com/ridgelinehq/roofcrm/internal/activity/domain"
	billingdomain "github.com/ridgelinehq/roofcrm/internal/billing/domain"
	changeorderdomain "github.com/ridgelinehq/roofcrm/internal/changeorder/domain"
	"github.com/ridgelinehq/roofcrm/internal/config"
	jobdomain "github.com/ridgelinehq/roofcrm/internal/job/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned SQL migrations target postgres. Sqlite and mysql
			// installs build the schema from the models directly.
			return conn.AutoMigrate(
				&jobdomain.Job{},
				&changeorderdomain.ChangeOrder{},
				&billingdomain.Invoice{},
				&billingdomain.InvoiceLineItem{},
				&activitydomain.ActivityLog{},
				&userRole{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)

// userRole maps a user to their billing role. Kept here rather than in a
// feature package because only the authorization layer reads it.
type userRole struct {
	UserID int64  `gorm:"primaryKey"`
	Role   string `gorm:"type:text;not null"`
}

func (userRole) TableName() string { return "user_roles" }
