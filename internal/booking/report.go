package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceCount is the number of done appointments for one service label.
type ServiceCount struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
}

// RevenuePoint is the revenue of one calendar day.
type RevenuePoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Summary is the dashboard view of the current records.
type Summary struct {
	Date           string          `json:"date"`
	TodayRevenue   decimal.Decimal `json:"todayRevenue"`
	WeekAverage    decimal.Decimal `json:"weekAverage"`
	MonthAverage   decimal.Decimal `json:"monthAverage"`
	AverageTicket  decimal.Decimal `json:"averageTicket"`
	PendingCount   int             `json:"pendingCount"`
	DoneCount      int             `json:"doneCount"`
	Services       []ServiceCount  `json:"services"`
	InventoryValue decimal.Decimal `json:"inventoryValue"`
	MonthSpend     decimal.Decimal `json:"monthSpend"`
	LowStock       []Product       `json:"lowStock"`
}

// DailyClose is the closing figures of one calendar day.
type DailyClose struct {
	Date          string          `json:"date"`
	Revenue       decimal.Decimal `json:"revenue"`
	DoneCount     int             `json:"doneCount"`
	AverageTicket decimal.Decimal `json:"averageTicket"`
	PendingCount  int             `json:"pendingCount"`
	LowStock      []string        `json:"lowStock"`
	ClosedAt      time.Time       `json:"closedAt"`
}

// completionDate keys a done appointment by the local date of completedAt,
// falling back to the scheduled date for records written without it.
func completionDate(a Appointment, loc *time.Location) string {
	if a.CompletedAt != nil {
		return a.CompletedAt.In(loc).Format(DateLayout)
	}
	return a.Date
}

func (s *Store) revenueByDate() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, a := range s.appointments {
		if a.Status != StatusDone {
			continue
		}
		key := completionDate(a, s.loc)
		out[key] = out[key].Add(a.Value)
	}
	return out
}

// RevenueOnDate sums done appointments completed on date (YYYY-MM-DD).
func (s *Store) RevenueOnDate(date string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revenueByDate()[date]
}

func (s *Store) revenueWindow(days int) []RevenuePoint {
	if days <= 0 {
		return []RevenuePoint{}
	}
	byDate := s.revenueByDate()
	today := s.today()
	out := make([]RevenuePoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format(DateLayout)
		out = append(out, RevenuePoint{Date: date, Revenue: byDate[date]})
	}
	return out
}

// RevenueWindow is the dated revenue of the last days calendar days, oldest first, ending today.
func (s *Store) RevenueWindow(days int) []RevenuePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revenueWindow(days)
}

// RevenueOverWindow is RevenueWindow without the dates; it always has days entries.
func (s *Store) RevenueOverWindow(days int) []decimal.Decimal {
	points := s.RevenueWindow(days)
	out := make([]decimal.Decimal, len(points))
	for i, p := range points {
		out[i] = p.Revenue
	}
	return out
}

func sumPoints(points []RevenuePoint) decimal.Decimal {
	total := decimal.Zero
	for _, p := range points {
		total = total.Add(p.Revenue)
	}
	return total
}

func (s *Store) averagePerDay(days int) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return sumPoints(s.revenueWindow(days)).Div(decimal.NewFromInt(int64(days)))
}

// TotalOverWindow sums RevenueOverWindow(days).
func (s *Store) TotalOverWindow(days int) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumPoints(s.revenueWindow(days))
}

// AveragePerDay divides TotalOverWindow by days; days without revenue count.
func (s *Store) AveragePerDay(days int) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.averagePerDay(days)
}

func averageTicket(appts []Appointment) (decimal.Decimal, int) {
	total := decimal.Zero
	n := 0
	for _, a := range appts {
		if a.Status != StatusDone {
			continue
		}
		total = total.Add(a.Value)
		n++
	}
	if n == 0 {
		return decimal.Zero, 0
	}
	return total.Div(decimal.NewFromInt(int64(n))), n
}

// AverageTicket is the mean value of done appointments, zero when there are none.
func (s *Store) AverageTicket() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	avg, _ := averageTicket(s.appointments)
	return avg
}

func (s *Store) serviceDistribution() []ServiceCount {
	out := []ServiceCount{}
	index := make(map[string]int)
	for _, a := range s.appointments {
		if a.Status != StatusDone {
			continue
		}
		if i, ok := index[a.Service]; ok {
			out[i].Count++
			continue
		}
		index[a.Service] = len(out)
		out = append(out, ServiceCount{Service: a.Service, Count: 1})
	}
	return out
}

// ServiceDistribution counts done appointments per service, in order of first occurrence.
func (s *Store) ServiceDistribution() []ServiceCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serviceDistribution()
}

func (s *Store) inventoryValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.products {
		total = total.Add(p.StockValue())
	}
	return total
}

// TotalInventoryValue sums unit value times quantity over all products.
func (s *Store) TotalInventoryValue() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inventoryValue()
}

func (s *Store) spendWithinDays(days int) decimal.Decimal {
	if days < 0 {
		return decimal.Zero
	}
	today := s.today()
	from := today.AddDate(0, 0, -days).Format(DateLayout)
	to := today.Format(DateLayout)
	total := decimal.Zero
	for _, p := range s.products {
		if p.PurchaseDate >= from && p.PurchaseDate <= to {
			total = total.Add(p.StockValue())
		}
	}
	return total
}

// SpendWithinDays sums stock value of products purchased in [today-days, today].
func (s *Store) SpendWithinDays(days int) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spendWithinDays(days)
}

// Summary computes the dashboard from a single consistent read.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	today := s.today().Format(DateLayout)
	avg, done := averageTicket(s.appointments)
	out := Summary{
		Date:           today,
		TodayRevenue:   s.revenueByDate()[today],
		WeekAverage:    s.averagePerDay(7),
		MonthAverage:   s.averagePerDay(30),
		AverageTicket:  avg,
		PendingCount:   len(s.appointments) - done,
		DoneCount:      done,
		Services:       s.serviceDistribution(),
		InventoryValue: s.inventoryValue(),
		MonthSpend:     s.spendWithinDays(30),
		LowStock:       []Product{},
	}
	for _, p := range s.products {
		if IsLowStock(p) {
			out.LowStock = append(out.LowStock, cloneProduct(p))
		}
	}
	return out
}

// CloseDay computes the closing figures of date (YYYY-MM-DD).
// Pending counts the appointments scheduled for that date still not done.
func (s *Store) CloseDay(date string) DailyClose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var doneThatDay []Appointment
	pending := 0
	for _, a := range s.appointments {
		switch {
		case a.Status == StatusDone && completionDate(a, s.loc) == date:
			doneThatDay = append(doneThatDay, a)
		case a.Status == StatusPending && a.Date == date:
			pending++
		}
	}
	avg, n := averageTicket(doneThatDay)
	out := DailyClose{
		Date:          date,
		Revenue:       s.revenueByDate()[date],
		DoneCount:     n,
		AverageTicket: avg,
		PendingCount:  pending,
		LowStock:      []string{},
		ClosedAt:      s.now().UTC(),
	}
	for _, p := range s.products {
		if IsLowStock(p) {
			out.LowStock = append(out.LowStock, p.Name)
		}
	}
	return out
}
