package clock

import "time"

// Clock abstracts time for components that stamp captured events.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a controllable clock for tests.
type MockClock struct {
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	return c.CurrentTime
}

func (c *MockClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
