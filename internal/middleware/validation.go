package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/relayops/dispatch-api/internal/model"
)

// SetupValidation wires custom rules into gin's binding validator. Field
// names in validation errors come from the json tag so API clients see the
// wire name, not the Go identifier.
func SetupValidation() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	v.RegisterStructValidation(validateRecipient, model.Recipient{})
	v.RegisterStructValidation(validateRecurrence, model.Recurrence{})
}

// A recipient needs at least one identifier the resolver can work with, and
// the email type needs the email itself.
func validateRecipient(sl validator.StructLevel) {
	r := sl.Current().Interface().(model.Recipient)
	if r.ID == "" && r.Name == "" && r.Email == "" {
		sl.ReportError(r.ID, "id", "ID", "recipientref", "")
	}
	if r.Type == model.RecipientTypeEmail && r.Email == "" {
		sl.ReportError(r.Email, "email", "Email", "required", "")
	}
}

func validateRecurrence(sl validator.StructLevel) {
	r := sl.Current().Interface().(model.Recurrence)
	switch r.Frequency {
	case "", "daily", "weekly", "monthly":
	default:
		sl.ReportError(r.Frequency, "frequency", "Frequency", "oneof", "daily weekly monthly")
	}
	if r.Hour < 0 || r.Hour > 23 {
		sl.ReportError(r.Hour, "hour", "Hour", "max", "23")
	}
	if r.Minute < 0 || r.Minute > 59 {
		sl.ReportError(r.Minute, "minute", "Minute", "max", "59")
	}
	if r.Frequency == "weekly" && (r.DayOfWeek < 0 || r.DayOfWeek > 6) {
		sl.ReportError(r.DayOfWeek, "day_of_week", "DayOfWeek", "max", "6")
	}
}
