package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/config"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/router"
	"github.com/habitloop/internal/scheduler"
	"github.com/habitloop/internal/service"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 可选的引导账号
	if err := db.EnsureUser(cfg.BootstrapUserName, cfg.BootstrapPassword); err != nil {
		log.Fatalf("failed to ensure bootstrap user: %v", err)
	}

	// 夜间全量同步
	syncer := service.NewSyncService(db.DB)
	syncer.SetHorizon(cfg.HorizonDays)
	sched := scheduler.New(syncer)
	if err := sched.Start(cfg.SyncSchedule); err != nil {
		log.Fatalf("failed to start sync scheduler: %v", err)
	}
	defer sched.Stop()

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(cfg.SessionSecret, cfg.HorizonDays)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
