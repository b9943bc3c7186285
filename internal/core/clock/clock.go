package clock

import (
	"sync"
	"time"
	_ "time/tzdata"
)

// Clock is the single source of "now" for jobs, retention and coalescing windows.
type Clock interface {
	Now() time.Time
}

// Real reads the wall clock in Location (local time when nil).
type Real struct {
	Location *time.Location
}

func (r Real) Now() time.Time {
	if r.Location != nil {
		return time.Now().In(r.Location)
	}
	return time.Now()
}

type Mock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns midnight of the last calendar day of t's month.
func EndOfMonth(t time.Time) time.Time {
	y, mo, _ := t.Date()
	return time.Date(y, mo+1, 0, 0, 0, 0, 0, t.Location())
}

func IsLastDayOfMonth(t time.Time) bool {
	return t.Day() == EndOfMonth(t).Day()
}

// LoadLocation resolves an IANA zone name, returning time.Local for "" or "Local".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
