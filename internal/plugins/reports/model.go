// Package reports serves aggregated business metrics to authenticated
// dashboard users. The computation is expensive, so the endpoint sits
// behind the reports rate limiter and results are cached in Redis.
package reports

import "time"

// dateLayout is the wire format of report dates.
const dateLayout = "2006-01-02"

// Range bounds.
const (
	DefaultRangeDays = 30
	MaxRangeDays     = 366
)

// DailyMetric is one row of daily_metrics.
type DailyMetric struct {
	Day          string `json:"day"`
	Orders       int64  `json:"orders"`
	RevenueCents int64  `json:"revenueCents"`
	Customers    int64  `json:"customers"`
}

// Summary is the aggregate over an inclusive day range.
type Summary struct {
	From         string        `json:"from"`
	To           string        `json:"to"`
	Orders       int64         `json:"orders"`
	RevenueCents int64         `json:"revenueCents"`
	Customers    int64         `json:"customers"`
	Daily        []DailyMetric `json:"daily"`
}

// add folds one day into the totals.
func (s *Summary) add(d DailyMetric) {
	s.Orders += d.Orders
	s.RevenueCents += d.RevenueCents
	s.Customers += d.Customers
	s.Daily = append(s.Daily, d)
}

// dayRange is a validated inclusive range of UTC dates.
type dayRange struct {
	from time.Time
	to   time.Time
}

// key identifies the range in the cache.
func (r dayRange) key() string {
	return r.from.Format(dateLayout) + ":" + r.to.Format(dateLayout)
}
