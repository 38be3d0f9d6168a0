package scheduler

import (
	"log"
	"strings"

	"github.com/habitloop/internal/service"
	"github.com/robfig/cron/v3"
)

// Scheduler 驱动夜间的全量习惯同步：
// 长期在线、不重新登录的用户也能保持实例视野被持续补齐。
type Scheduler struct {
	cron   *cron.Cron
	syncer *service.SyncService
}

// New 构造 Scheduler
func New(syncer *service.SyncService) *Scheduler {
	return &Scheduler{cron: cron.New(), syncer: syncer}
}

// Start 注册定时任务并启动调度，spec 为空时默认每天 03:00
func (s *Scheduler) Start(spec string) error {
	if strings.TrimSpace(spec) == "" {
		spec = "0 3 * * *"
	}

	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.syncer.SyncAllUsers(); err != nil {
			log.Printf("scheduled sync: %v", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
