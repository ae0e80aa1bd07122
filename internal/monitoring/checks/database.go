package checks

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/studyhall/internal/monitoring"
)

// Database returns a probe that pings the database handle.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		if db == nil {
			return monitoring.ResultFromError(errors.New("database not configured"))
		}
		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError(err)
		}
		return monitoring.ResultFromError(sqlDB.PingContext(ctx))
	})
}
