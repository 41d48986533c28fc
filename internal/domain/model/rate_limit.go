package model

import (
	"fmt"
	"time"
)

// RateLimitPolicy is the configured quota for one scope. A quota of zero (or
// negative) requests or a zero-hour window means "no limit configured"; this
// mirrors how administrators clear a limit, so it must admit everything
// rather than deny everything.
type RateLimitPolicy struct {
	Requests    int `yaml:"requests"`
	WindowHours int `yaml:"window_hours"`
}

func (p RateLimitPolicy) Unlimited() bool {
	return p.Requests <= 0 || p.WindowHours <= 0
}

func (p RateLimitPolicy) Window() time.Duration {
	return time.Duration(p.WindowHours) * time.Hour
}

// ScopeKeyUserFamily scopes a quota per user and pipeline family so quotas
// of unrelated pipelines do not cross-contaminate.
func ScopeKeyUserFamily(userID int64, family JobFamily) string {
	return fmt.Sprintf("pipeline_rl:%d:%s", userID, family)
}

// ScopeKeyUserCourse scopes a quota per user and course, used for
// course-level chat.
func ScopeKeyUserCourse(userID, courseID int64) string {
	return fmt.Sprintf("pipeline_rl:%d:course:%d", userID, courseID)
}
