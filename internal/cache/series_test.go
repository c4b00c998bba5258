package cache

import (
	"testing"
	"time"

	"adnews/internal/model"

	"github.com/shopspring/decimal"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func series(values ...int64) []model.SeriesPoint {
	out := make([]model.SeriesPoint, 0, len(values))
	for i, v := range values {
		out = append(out, model.SeriesPoint{Label: time.Duration(i).String(), Value: decimal.NewFromInt(v)})
	}
	return out
}

func TestGetPut(t *testing.T) {
	c := NewSeriesCache()

	if _, ok := c.Get("USD", "week"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("USD", "week", series(1, 2, 3))

	got, ok := c.Get("USD", "week")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 3 || !got[2].Value.Equal(decimal.NewFromInt(3)) {
		t.Errorf("unexpected series %+v", got)
	}

	if _, ok := c.Get("EUR", "week"); ok {
		t.Error("expected miss for other symbol")
	}
}

func TestSeriesAreCopied(t *testing.T) {
	c := NewSeriesCache()

	in := series(1, 2)
	c.Put("BTC", "month", in)
	in[0].Value = decimal.NewFromInt(100)

	got, _ := c.Get("BTC", "month")
	if !got[0].Value.Equal(decimal.NewFromInt(1)) {
		t.Errorf("stored series changed through caller slice: %s", got[0].Value)
	}

	got[1].Value = decimal.NewFromInt(200)
	again, _ := c.Get("BTC", "month")
	if !again[1].Value.Equal(decimal.NewFromInt(2)) {
		t.Errorf("stored series changed through returned slice: %s", again[1].Value)
	}
}

func TestClear(t *testing.T) {
	c := NewSeriesCache()
	c.Put("USD", "day", series(1))
	c.Put("EUR", "year", series(1))

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestClearPeriod(t *testing.T) {
	c := NewSeriesCache()
	c.Put("USD", "day", series(1))
	c.Put("EUR", "day", series(1))
	c.Put("USD", "week", series(1))

	c.ClearPeriod("day")

	if _, ok := c.Get("USD", "day"); ok {
		t.Error("day entry should be cleared")
	}
	if _, ok := c.Get("USD", "week"); !ok {
		t.Error("week entry should survive")
	}
}

func TestHourChangeDropsDay(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 10, 0, 0, time.UTC)}
	c := NewSeriesCacheWithClock(clock.Now)

	c.Put("USD", "day", series(1))
	c.Put("USD", "week", series(1))

	clock.t = time.Date(2024, 1, 1, 12, 59, 59, 0, time.UTC)
	if _, ok := c.Get("USD", "day"); !ok {
		t.Fatal("day entry should survive within the same hour")
	}

	clock.t = time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
	if _, ok := c.Get("USD", "day"); ok {
		t.Error("day entry should be dropped after the hour changed")
	}
	if _, ok := c.Get("USD", "week"); !ok {
		t.Error("week entry should survive the hour change")
	}
}

func TestHourChangeFollowsWallClock(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 5, 0, 0, ist)}
	c := NewSeriesCacheWithClock(clock.Now)

	c.Put("USD", "day", series(1))

	clock.t = time.Date(2024, 1, 1, 10, 45, 0, 0, ist)
	if _, ok := c.Get("USD", "day"); !ok {
		t.Fatal("day entry should survive until the local hour changes")
	}

	clock.t = time.Date(2024, 1, 1, 11, 0, 0, 0, ist)
	if _, ok := c.Get("USD", "day"); ok {
		t.Error("day entry should be dropped at the top of the local hour")
	}
}
