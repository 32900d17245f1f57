package persons

// CreateRequest is the payload accepted when creating a person. The creator
// is taken from the session, never from the payload.
type CreateRequest struct {
	Name    string  `json:"name"`
	Age     *int    `json:"age" validate:"required"`
	Email   string  `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// UpdateRequest carries a partial update. Nil fields are left unchanged; an
// empty phone or address clears it.
type UpdateRequest struct {
	Name    *string `json:"name"`
	Age     *int    `json:"age"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}
