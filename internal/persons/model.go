package persons

import (
	"fmt"
	"time"

	"github.com/roster-app/roster/internal/platform/httpx"
)

// ErrDuplicateEmail indicates another person already uses the email.
var ErrDuplicateEmail = fmt.Errorf("%w: email already exists", httpx.ErrDuplicate)

// Person represents a managed person record.
type Person struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	CreatedBy *int64    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
