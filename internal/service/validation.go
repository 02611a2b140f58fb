package service

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vbonduro/catchlogs/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Only fails on a malformed tag name.
	_ = v.RegisterValidation("finite", isFinite)
	return v
}

// isFinite rejects NaN and the infinities; gt=0 alone lets +Inf through.
func isFinite(fl validator.FieldLevel) bool {
	f := fl.Field()
	if !f.CanFloat() {
		return false
	}
	return !math.IsInf(f.Float(), 0) && !math.IsNaN(f.Float())
}

// validateStruct runs the struct tags on in and reports the first failure as a
// ValidationError named after the field's JSON key.
func (s *JournalService) validateStruct(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("", err.Error())
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(fe.Field(), "is required")
	case "finite":
		return domain.NewValidationError(fe.Field(), "must be a finite number")
	case "gt":
		return domain.NewValidationError(fe.Field(), "must be greater than "+fe.Param())
	case "latitude", "longitude":
		return domain.NewValidationError(fe.Field(), "must be a valid "+fe.Tag())
	default:
		return domain.NewValidationError(fe.Field(), "is invalid")
	}
}

// normalize trims the free-text fields so blank values fail validation and
// blank notes are stored as absent.
func (in *EntryInput) normalize() {
	in.Species = strings.TrimSpace(in.Species)
	in.Tackle = strings.TrimSpace(in.Tackle)
	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		if notes == "" {
			in.Notes = nil
		} else {
			in.Notes = &notes
		}
	}
}
