package handler

import (
	"github.com/habitloop/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	users    *service.UserService
	habits   *service.HabitService
	progress *service.ProgressService
	syncer   *service.SyncService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, horizonDays int) *API {
	syncer := service.NewSyncService(gdb)
	syncer.SetHorizon(horizonDays)

	return &API{
		db:       gdb,
		users:    service.NewUserService(gdb),
		habits:   service.NewHabitService(gdb),
		progress: service.NewProgressService(gdb),
		syncer:   syncer,
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}
