package booking

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/belezaflow/belezaflow/internal/shared"
)

// DateLayout is the canonical ISO calendar date used for storage and comparison.
const DateLayout = "2006-01-02"

// TimeLayout is the canonical wall-clock label.
const TimeLayout = "15:04"

var timeLayouts = []string{TimeLayout, "15:04:05", "3:04 PM", "3:04PM", "15h04"}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Amount is a monetary input as typed by the user; JSON numbers and strings are both accepted.
type Amount string

// UnmarshalJSON accepts "50", 50 and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// AppointmentInput carries the raw fields of a new appointment.
type AppointmentInput struct {
	Name    string `json:"name" validate:"required"`
	Service string `json:"service" validate:"required"`
	Value   Amount `json:"value" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Time    string `json:"time" validate:"required"`
}

func (in AppointmentInput) trimmed() AppointmentInput {
	return AppointmentInput{
		Name:    strings.TrimSpace(in.Name),
		Service: strings.TrimSpace(in.Service),
		Value:   Amount(strings.TrimSpace(string(in.Value))),
		Date:    strings.TrimSpace(in.Date),
		Time:    strings.TrimSpace(in.Time),
	}
}

// QuickAppointmentInput books one of the quick-service catalog entries.
type QuickAppointmentInput struct {
	ServiceType string `json:"serviceType" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Value       Amount `json:"value" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Time        string `json:"time" validate:"required"`
}

// ProductInput carries the raw fields of a new product. An empty purchase date means today.
type ProductInput struct {
	Name         string `json:"name" validate:"required"`
	UnitValue    Amount `json:"unitValue" validate:"required"`
	Category     string `json:"category" validate:"required"`
	PurchaseDate string `json:"purchaseDate"`
}

func (in ProductInput) trimmed() ProductInput {
	return ProductInput{
		Name:         strings.TrimSpace(in.Name),
		UnitValue:    Amount(strings.TrimSpace(string(in.UnitValue))),
		Category:     strings.TrimSpace(in.Category),
		PurchaseDate: strings.TrimSpace(in.PurchaseDate),
	}
}

// ProductEdit replaces every editable field of a product.
type ProductEdit struct {
	Name         string `json:"name" validate:"required"`
	UnitValue    Amount `json:"unitValue" validate:"required"`
	Category     string `json:"category" validate:"required"`
	PurchaseDate string `json:"purchaseDate" validate:"required"`
}

// StockThresholds configures the low-stock signal of a product.
type StockThresholds struct {
	Capacity     int `json:"capacity" validate:"gte=1"`
	MinThreshold int `json:"minThreshold" validate:"gte=0,ltefield=Capacity"`
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &shared.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "ltefield":
		return "must not exceed " + fe.Param()
	default:
		return "is invalid"
	}
}

// coerceAmount parses a user amount, turning anything unparseable or negative into zero.
func coerceAmount(raw Amount) decimal.Decimal {
	d, ok := parseAmount(raw)
	if !ok {
		return decimal.Zero
	}
	return d
}

// parseAmount understands "50", "50.5", "50,50", "1.234,56" and an optional "R$" prefix.
func parseAmount(raw Amount) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(raw))
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// normalizeDate converts ISO or legacy day-first dates into DateLayout.
func normalizeDate(raw string, loc *time.Location) (string, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(DateLayout, raw, loc); err == nil {
		return t.Format(DateLayout), nil
	}
	t, err := dateparse.ParseIn(raw, loc, dateparse.PreferMonthFirst(false))
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(DateLayout), nil
}

func normalizeTime(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.Format(TimeLayout), nil
		}
		lastErr = err
	}
	return "", lastErr
}
