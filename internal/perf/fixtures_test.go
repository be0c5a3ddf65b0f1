package perf

import (
	"fmt"
	"testing"
	"time"

	"github.com/belezaflow/belezaflow/internal/booking"
	_ "github.com/belezaflow/belezaflow/internal/testing/guard"
)

var services = []string{"Corte", "Escova", "Manicure", "Pedicure", "Coloração"}

// seededStore fills a store with appointments spread over the last 60 days,
// every other one done, plus a product catalog.
func seededStore(t testing.TB, appointments, products int) *booking.Store {
	t.Helper()
	now := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	store := booking.NewStore(booking.StoreConfig{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
	for i := 0; i < appointments; i++ {
		day := now.AddDate(0, 0, -(i % 60)).Format(booking.DateLayout)
		appt, err := store.CreateAppointment(booking.AppointmentInput{
			Name:    fmt.Sprintf("Cliente %d", i),
			Service: services[i%len(services)],
			Value:   booking.Amount(fmt.Sprintf("%d.50", 20+i%80)),
			Date:    day,
			Time:    fmt.Sprintf("%02d:%02d", 8+i%10, (i*15)%60),
		})
		if err != nil {
			t.Fatalf("seed appointment %d: %v", i, err)
		}
		if i%2 == 0 {
			if _, err := store.MarkDone(appt.ID); err != nil {
				t.Fatalf("mark done %d: %v", i, err)
			}
		}
	}
	for i := 0; i < products; i++ {
		_, err := store.CreateProduct(booking.ProductInput{
			Name:         fmt.Sprintf("Produto %d", i),
			UnitValue:    booking.Amount(fmt.Sprintf("%d,90", 5+i%40)),
			Category:     "Cabelo",
			PurchaseDate: now.AddDate(0, 0, -(i % 45)).Format(booking.DateLayout),
		})
		if err != nil {
			t.Fatalf("seed product %d: %v", i, err)
		}
	}
	return store
}
