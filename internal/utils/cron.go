package utils

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/talktera/talktera-scheduling-service/internal/config"
	"github.com/talktera/talktera-scheduling-service/internal/service"
)

// StartCronScheduler runs the two background jobs: daily session reminders
// and the recurrence horizon roll. Blocks forever; run it in a goroutine.
func StartCronScheduler(schedulingService service.SchedulingService, cfg *config.Config, logger *logrus.Logger) {
	scheduler := cron.New(cron.WithLocation(cfg.Location()))

	if _, err := scheduler.AddFunc(cfg.ReminderCronSpec, schedulingService.SendDailyReminders); err != nil {
		logger.Fatalf("Failed to schedule reminder job: %v", err)
	}
	if _, err := scheduler.AddFunc(cfg.RollCronSpec, schedulingService.RollRecurrences); err != nil {
		logger.Fatalf("Failed to schedule horizon roll job: %v", err)
	}

	scheduler.Start()
	select {}
}
