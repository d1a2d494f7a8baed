package clock

import "time"

// Clock 便于测试中固定时间
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed 始终返回同一时刻
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}
