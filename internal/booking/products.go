package booking

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/belezaflow/belezaflow/internal/shared"
)

// ErrProductNotFound is returned for ids absent from the store.
var ErrProductNotFound = fmt.Errorf("booking: product %w", shared.ErrNotFound)

// CreateProduct validates in and appends a product with quantity 1.
func (s *Store) CreateProduct(in ProductInput) (Product, error) {
	in = in.trimmed()
	if err := validateStruct(in); err != nil {
		return Product{}, err
	}
	value, date, err := s.parseProductFields(in.UnitValue, in.PurchaseDate, true)
	if err != nil {
		return Product{}, err
	}
	p := Product{
		Name:         in.Name,
		Category:     in.Category,
		UnitValue:    value,
		Quantity:     1,
		PurchaseDate: date,
		Capacity:     s.capacity,
		MinThreshold: s.minimum,
		ChangeLog:    []ChangeLogEntry{},
	}
	s.mu.Lock()
	p.ID = s.newID()
	s.products = append(s.products, p)
	evt := s.bump(EventProductCreated, p.ID)
	s.mu.Unlock()
	s.publish(evt)
	return cloneProduct(p), nil
}

// parseProductFields rejects an unparseable unit value or purchase date.
// An empty date means today when defaultToday is set.
func (s *Store) parseProductFields(rawValue Amount, rawDate string, defaultToday bool) (decimal.Decimal, string, error) {
	verr := &shared.ValidationError{}
	value, ok := parseAmount(rawValue)
	if !ok {
		verr.Add("unitValue", "must be a non-negative amount")
	}
	var date string
	if rawDate == "" && defaultToday {
		date = s.today().Format(DateLayout)
	} else {
		d, err := normalizeDate(rawDate, s.loc)
		if err != nil {
			verr.Add("purchaseDate", "must be a calendar date")
		}
		date = d
	}
	if !verr.Empty() {
		return decimal.Zero, "", verr
	}
	return value, date, nil
}

// IncrementQuantity adds one unit to the product.
func (s *Store) IncrementQuantity(id string) (Product, error) {
	return s.updateProduct(id, func(p *Product) bool {
		p.Quantity++
		return true
	})
}

// DecrementQuantity removes one unit. At quantity 1 the product is kept at 1,
// unless the store was configured with AutoRemoveAtZero, in which case the product
// is removed and returned with quantity 0.
func (s *Store) DecrementQuantity(id string) (Product, error) {
	s.mu.Lock()
	i := s.productIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return Product{}, ErrProductNotFound
	}
	p := &s.products[i]
	switch {
	case p.Quantity > 1:
		p.Quantity--
	case s.autoRemove:
		removed := cloneProduct(*p)
		removed.Quantity = 0
		s.products = slices.Delete(s.products, i, i+1)
		evt := s.bump(EventProductRemoved, id)
		s.mu.Unlock()
		s.publish(evt)
		return removed, nil
	default:
		out := cloneProduct(*p)
		s.mu.Unlock()
		return out, nil
	}
	out := cloneProduct(*p)
	evt := s.bump(EventProductUpdated, id)
	s.mu.Unlock()
	s.publish(evt)
	return out, nil
}

// RemoveProduct deletes a product.
func (s *Store) RemoveProduct(id string) error {
	s.mu.Lock()
	i := s.productIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrProductNotFound
	}
	s.products = slices.Delete(s.products, i, i+1)
	evt := s.bump(EventProductRemoved, id)
	s.mu.Unlock()
	s.publish(evt)
	return nil
}

// EditProduct overwrites every editable field after logging the previous values.
func (s *Store) EditProduct(id string, in ProductEdit) (Product, error) {
	in = ProductEdit{
		Name:         strings.TrimSpace(in.Name),
		UnitValue:    Amount(strings.TrimSpace(string(in.UnitValue))),
		Category:     strings.TrimSpace(in.Category),
		PurchaseDate: strings.TrimSpace(in.PurchaseDate),
	}
	if err := validateStruct(in); err != nil {
		return Product{}, err
	}
	value, date, err := s.parseProductFields(in.UnitValue, in.PurchaseDate, false)
	if err != nil {
		return Product{}, err
	}
	at := s.now().UTC()
	return s.updateProduct(id, func(p *Product) bool {
		p.ChangeLog = append(p.ChangeLog, ChangeLogEntry{At: at, Previous: p.snapshot()})
		p.Name = in.Name
		p.UnitValue = value
		p.Category = in.Category
		p.PurchaseDate = date
		return true
	})
}

// SetStockThresholds changes the capacity and minimum used for the low-stock signal.
// It is not an edit and leaves the change log untouched.
func (s *Store) SetStockThresholds(id string, in StockThresholds) (Product, error) {
	if err := validateStruct(in); err != nil {
		return Product{}, err
	}
	return s.updateProduct(id, func(p *Product) bool {
		if p.Capacity == in.Capacity && p.MinThreshold == in.MinThreshold {
			return false
		}
		p.Capacity = in.Capacity
		p.MinThreshold = in.MinThreshold
		return true
	})
}

// LowStock lists products below their minimum threshold.
func (s *Store) LowStock() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Product
	for _, p := range s.products {
		if IsLowStock(p) {
			out = append(out, cloneProduct(p))
		}
	}
	return out
}

// updateProduct applies fn under the write lock; fn reports whether it changed anything.
func (s *Store) updateProduct(id string, fn func(*Product) bool) (Product, error) {
	s.mu.Lock()
	i := s.productIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return Product{}, ErrProductNotFound
	}
	changed := fn(&s.products[i])
	out := cloneProduct(s.products[i])
	if !changed {
		s.mu.Unlock()
		return out, nil
	}
	evt := s.bump(EventProductUpdated, id)
	s.mu.Unlock()
	s.publish(evt)
	return out, nil
}
