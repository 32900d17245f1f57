package persons

import (
	"strings"

	"github.com/roster-app/roster/internal/shared"
)

type record struct {
	Name    string `validate:"required,max=100"`
	Age     int    `validate:"gte=0,lte=150"`
	Email   string `validate:"required,email,max=120"`
	Phone   string `validate:"max=20"`
	Address string `validate:"max=200"`
}

func (s *Service) validateRecord(p Person) error {
	err := s.validate.Struct(record{
		Name:    p.Name,
		Age:     p.Age,
		Email:   p.Email,
		Phone:   deref(p.Phone),
		Address: deref(p.Address),
	})
	return shared.ValidationError(err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// optional maps an absent or blank value to nil.
func optional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
