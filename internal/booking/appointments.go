package booking

import (
	"fmt"
	"slices"

	"github.com/belezaflow/belezaflow/internal/shared"
)

// ErrAppointmentNotFound is returned for ids absent from the store.
var ErrAppointmentNotFound = fmt.Errorf("booking: appointment %w", shared.ErrNotFound)

// CreateAppointment validates in and appends a pending appointment.
// Empty required fields are rejected; a value that is not a valid amount becomes zero.
func (s *Store) CreateAppointment(in AppointmentInput) (Appointment, error) {
	appt, err := s.buildAppointment(in)
	if err != nil {
		return Appointment{}, err
	}
	s.mu.Lock()
	appt.ID = s.newID()
	s.appointments = append(s.appointments, appt)
	evt := s.bump(EventAppointmentCreated, appt.ID)
	s.mu.Unlock()
	s.publish(evt)
	return cloneAppointment(appt), nil
}

// CreateQuickAppointment books a catalog service; the stored result is the same as CreateAppointment.
func (s *Store) CreateQuickAppointment(in QuickAppointmentInput) (Appointment, error) {
	if err := validateStruct(in); err != nil {
		return Appointment{}, err
	}
	if !isQuickService(in.ServiceType) {
		return Appointment{}, shared.NewValidationError("serviceType", "is not a quick service")
	}
	return s.CreateAppointment(AppointmentInput{
		Name:    in.Name,
		Service: quickServiceLabel(in.ServiceType),
		Value:   in.Value,
		Date:    in.Date,
		Time:    in.Time,
	})
}

func (s *Store) buildAppointment(in AppointmentInput) (Appointment, error) {
	in = in.trimmed()
	if err := validateStruct(in); err != nil {
		return Appointment{}, err
	}
	verr := &shared.ValidationError{}
	date, err := normalizeDate(in.Date, s.loc)
	if err != nil {
		verr.Add("date", "must be a calendar date")
	}
	clock, err := normalizeTime(in.Time)
	if err != nil {
		verr.Add("time", "must be a time of day")
	}
	if !verr.Empty() {
		return Appointment{}, verr
	}
	return Appointment{
		Name:    in.Name,
		Service: in.Service,
		Value:   coerceAmount(in.Value),
		Date:    date,
		Time:    clock,
		Status:  StatusPending,
	}, nil
}

// MarkDone moves a pending appointment to done and stamps completedAt.
// Marking an appointment that is already done changes nothing.
func (s *Store) MarkDone(id string) (Appointment, error) {
	s.mu.Lock()
	i := s.appointmentIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return Appointment{}, ErrAppointmentNotFound
	}
	if s.appointments[i].Status == StatusDone {
		appt := cloneAppointment(s.appointments[i])
		s.mu.Unlock()
		return appt, nil
	}
	at := s.now().UTC()
	s.appointments[i].Status = StatusDone
	s.appointments[i].CompletedAt = &at
	appt := cloneAppointment(s.appointments[i])
	evt := s.bump(EventAppointmentDone, id)
	s.mu.Unlock()
	s.publish(evt)
	return appt, nil
}

// RemoveAppointment deletes an appointment whatever its status.
func (s *Store) RemoveAppointment(id string) error {
	s.mu.Lock()
	i := s.appointmentIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrAppointmentNotFound
	}
	s.appointments = slices.Delete(s.appointments, i, i+1)
	evt := s.bump(EventAppointmentRemoved, id)
	s.mu.Unlock()
	s.publish(evt)
	return nil
}

// PendingCount is the number of appointments still to be performed.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.appointments {
		if a.Status == StatusPending {
			n++
		}
	}
	return n
}
