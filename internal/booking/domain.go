package booking

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates appointment lifecycle states.
type Status string

const (
	// StatusPending marks a booked appointment not yet performed.
	StatusPending Status = "pending"
	// StatusDone marks a performed appointment; it counts towards revenue.
	StatusDone Status = "done"
)

// legacy labels written by older app versions.
var legacyStatus = map[string]Status{
	"pendente": StatusPending,
	"feito":    StatusDone,
}

// UnmarshalJSON accepts canonical and legacy status labels.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch Status(raw) {
	case StatusPending, StatusDone:
		*s = Status(raw)
		return nil
	}
	if mapped, ok := legacyStatus[raw]; ok {
		*s = mapped
		return nil
	}
	if raw == "" {
		*s = StatusPending
		return nil
	}
	return fmt.Errorf("booking: unknown status %q", raw)
}

// Appointment is a scheduled or completed service booking for a client.
type Appointment struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Service     string          `json:"service"`
	Value       decimal.Decimal `json:"value"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	Status      Status          `json:"status"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// IsDone reports whether the appointment has been performed.
func (a Appointment) IsDone() bool {
	return a.Status == StatusDone
}

// ProductSnapshot holds the editable fields of a product before an edit.
type ProductSnapshot struct {
	Name         string          `json:"name"`
	UnitValue    decimal.Decimal `json:"unitValue"`
	Category     string          `json:"category"`
	PurchaseDate string          `json:"purchaseDate"`
}

// ChangeLogEntry records the state a product had before one edit.
type ChangeLogEntry struct {
	At       time.Time       `json:"at"`
	Previous ProductSnapshot `json:"previous"`
}

// Product is a stock-tracked inventory item.
type Product struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Category     string           `json:"category"`
	UnitValue    decimal.Decimal  `json:"unitValue"`
	Quantity     int              `json:"quantity"`
	PurchaseDate string           `json:"purchaseDate"`
	Capacity     int              `json:"capacity"`
	MinThreshold int              `json:"minThreshold"`
	ChangeLog    []ChangeLogEntry `json:"changeLog"`
}

func (p Product) snapshot() ProductSnapshot {
	return ProductSnapshot{
		Name:         p.Name,
		UnitValue:    p.UnitValue,
		Category:     p.Category,
		PurchaseDate: p.PurchaseDate,
	}
}

// StockValue is unit value times quantity.
func (p Product) StockValue() decimal.Decimal {
	return p.UnitValue.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// IsLowStock reports whether quantity fell below the configured minimum.
func IsLowStock(p Product) bool {
	return p.Quantity < p.MinThreshold
}

// FillRatio is quantity over capacity, 0 when capacity is unset.
func FillRatio(p Product) float64 {
	if p.Capacity <= 0 {
		return 0
	}
	return float64(p.Quantity) / float64(p.Capacity)
}

// QuickService is a preset service label offered for fast booking.
type QuickService struct {
	Label string `json:"label"`
}

var quickServices = []QuickService{
	{Label: "Progressiva"},
	{Label: "Corte de cabelo"},
	{Label: "Unha"},
	{Label: "Escova"},
}

// QuickServices lists the quick-service catalog.
func QuickServices() []QuickService {
	out := make([]QuickService, len(quickServices))
	copy(out, quickServices)
	return out
}

func isQuickService(label string) bool {
	for _, qs := range quickServices {
		if strings.EqualFold(qs.Label, strings.TrimSpace(label)) {
			return true
		}
	}
	return false
}

func quickServiceLabel(label string) string {
	for _, qs := range quickServices {
		if strings.EqualFold(qs.Label, strings.TrimSpace(label)) {
			return qs.Label
		}
	}
	return label
}

func cloneAppointment(a Appointment) Appointment {
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		a.CompletedAt = &t
	}
	return a
}

func cloneProduct(p Product) Product {
	if p.ChangeLog != nil {
		log := make([]ChangeLogEntry, len(p.ChangeLog))
		copy(log, p.ChangeLog)
		p.ChangeLog = log
	}
	return p
}
