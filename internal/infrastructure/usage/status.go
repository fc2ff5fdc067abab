// Package usage keeps the monthly OCR quota.
package usage

import (
	"fmt"
	"math"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

const (
	// DefaultMonthlyLimit stays under the vision free tier of 1,000 calls a month
	DefaultMonthlyLimit = 900

	// DefaultWarnThreshold is the remaining count below which the status carries a warning
	DefaultWarnThreshold = 100

	monthLayout = "2006-01"
)

// Config holds quota settings shared by the trackers
type Config struct {
	MonthlyLimit  int
	WarnThreshold int
	Location      *time.Location // month boundaries; defaults to time.Local
}

func (c Config) withDefaults() Config {
	if c.MonthlyLimit <= 0 {
		c.MonthlyLimit = DefaultMonthlyLimit
	}
	if c.WarnThreshold < 0 {
		c.WarnThreshold = 0
	} else if c.WarnThreshold == 0 {
		c.WarnThreshold = DefaultWarnThreshold
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// monthOf returns the quota period t falls in
func (c Config) monthOf(t time.Time) string {
	return t.In(c.Location).Format(monthLayout)
}

// NewStatus builds the quota view for used calls out of limit
func NewStatus(month string, used, limit, warnThreshold int) *domain.UsageStatus {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	status := &domain.UsageStatus{
		Month:     month,
		Used:      used,
		Limit:     limit,
		Remaining: remaining,
		Allowed:   remaining > 0,
	}
	if limit > 0 {
		status.Percentage = int(math.Round(float64(used) / float64(limit) * 100))
	}

	switch {
	case !status.Allowed:
		status.Message = fmt.Sprintf("이번 달 무료 사용량(%d회)을 모두 사용했습니다. 다음 달에 초기화됩니다.", limit)
	case remaining <= warnThreshold:
		status.Message = fmt.Sprintf("이번 달 남은 사용량: %d회", remaining)
	}
	return status
}
