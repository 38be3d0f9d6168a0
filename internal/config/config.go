package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabasePath      string
	SessionSecret     string
	GinMode           string
	HorizonDays       int
	SyncSchedule      string
	BootstrapUserName string
	BootstrapPassword string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "habitloop.db"
	}

	sessionSecret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if sessionSecret == "" {
		sessionSecret = "habitloop-dev-secret"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	horizonDays := 7
	if raw := strings.TrimSpace(os.Getenv("HORIZON_DAYS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			horizonDays = parsed
		}
	}

	syncSchedule := strings.TrimSpace(os.Getenv("SYNC_SCHEDULE"))
	if syncSchedule == "" {
		syncSchedule = "0 3 * * *"
	}

	bootstrapUserName := strings.TrimSpace(os.Getenv("BOOTSTRAP_USER_NAME"))
	bootstrapPassword := strings.TrimSpace(os.Getenv("BOOTSTRAP_PASSWORD"))

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabasePath:      databasePath,
		SessionSecret:     sessionSecret,
		GinMode:           ginMode,
		HorizonDays:       horizonDays,
		SyncSchedule:      syncSchedule,
		BootstrapUserName: bootstrapUserName,
		BootstrapPassword: bootstrapPassword,
	}
}
