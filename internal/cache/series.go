package cache

import (
	"sync"
	"time"

	"adnews/internal/model"
)

// PeriodDay is dropped from the cache every time the wall-clock hour changes.
const PeriodDay = "day"

type Key struct {
	Symbol string
	Period string
}

// SeriesCache хранит рассчитанные исторические ряды по (символ, период)
type SeriesCache struct {
	mu       sync.Mutex
	entries  map[Key][]model.SeriesPoint
	lastHour time.Time
	now      func() time.Time
}

func NewSeriesCache() *SeriesCache {
	return NewSeriesCacheWithClock(time.Now)
}

// NewSeriesCacheWithClock создает кеш с заданным источником времени
func NewSeriesCacheWithClock(now func() time.Time) *SeriesCache {
	return &SeriesCache{
		entries:  make(map[Key][]model.SeriesPoint),
		lastHour: wallHour(now()),
		now:      now,
	}
}

func (c *SeriesCache) Get(symbol, period string) ([]model.SeriesPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkHour()

	series, ok := c.entries[Key{Symbol: symbol, Period: period}]
	if !ok {
		return nil, false
	}

	return copySeries(series), true
}

func (c *SeriesCache) Put(symbol, period string, series []model.SeriesPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkHour()

	c.entries[Key{Symbol: symbol, Period: period}] = copySeries(series)
}

func (c *SeriesCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key][]model.SeriesPoint)
}

func (c *SeriesCache) ClearPeriod(period string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearPeriod(period)
}

func (c *SeriesCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// checkHour вызывается под мьютексом
func (c *SeriesCache) checkHour() {
	hour := wallHour(c.now())
	if hour.Equal(c.lastHour) {
		return
	}

	c.lastHour = hour
	c.clearPeriod(PeriodDay)
}

func (c *SeriesCache) clearPeriod(period string) {
	for key := range c.entries {
		if key.Period == period {
			delete(c.entries, key)
		}
	}
}

// wallHour обрезает время до начала часа по местным часам t
func wallHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}

func copySeries(series []model.SeriesPoint) []model.SeriesPoint {
	if series == nil {
		return nil
	}

	out := make([]model.SeriesPoint, len(series))
	copy(out, series)

	return out
}
