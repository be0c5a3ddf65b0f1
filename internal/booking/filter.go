package booking

import (
	"strings"

	"golang.org/x/text/cases"
)

// Partition splits appointments by status.
type Partition struct {
	Pending []Appointment `json:"pending"`
	Done    []Appointment `json:"done"`
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(fold(haystack), fold(needle))
}

// FilterAppointments keeps appointments whose service contains service (ignoring case)
// and whose time label contains clock. An empty filter matches everything.
func (s *Store) FilterAppointments(service, clock string) []Appointment {
	service = strings.TrimSpace(service)
	clock = strings.TrimSpace(clock)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		if service != "" && !containsFold(a.Service, service) {
			continue
		}
		if clock != "" && !strings.Contains(a.Time, clock) {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	return out
}

// PartitionByStatus splits list into pending and done, keeping relative order.
func PartitionByStatus(list []Appointment) Partition {
	p := Partition{Pending: []Appointment{}, Done: []Appointment{}}
	for _, a := range list {
		if a.Status == StatusDone {
			p.Done = append(p.Done, a)
			continue
		}
		p.Pending = append(p.Pending, a)
	}
	return p
}

// SearchProducts keeps products whose name contains name, ignoring case.
func (s *Store) SearchProducts(name string) []Product {
	name = strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if name != "" && !containsFold(p.Name, name) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	return out
}
