package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextRun parses a cron expression (standard 5-field or @-descriptor form)
// and returns the first trigger after refTime. Used to validate schedules at
// startup before they are handed to the cron runner.
func NextRun(cronExpr string, refTime time.Time) (time.Time, error) {
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(refTime), nil
}
