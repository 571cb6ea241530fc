package clients

// CreateClientRequest is the body of the create action.
type CreateClientRequest struct {
	Name      string  `json:"name" validate:"max=255"`
	Email     string  `json:"email" validate:"required,email,max=254"`
	Company   *string `json:"company" validate:"omitempty,max=255"`
	Address   *string `json:"address"`
	Notes     *string `json:"notes"`
	ManagerID int64   `json:"manager_id" validate:"gte=0"`
}

// NewClient converts the request.
func (r CreateClientRequest) NewClient() NewClient {
	return NewClient{
		Name:      r.Name,
		Email:     r.Email,
		Company:   r.Company,
		Address:   r.Address,
		Notes:     r.Notes,
		ManagerID: r.ManagerID,
	}
}

// UpdateClientRequest is the body of a full update.
type UpdateClientRequest struct {
	Name    string  `json:"name" validate:"max=255"`
	Email   string  `json:"email" validate:"required,email,max=254"`
	Company *string `json:"company" validate:"omitempty,max=255"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

// Changes replaces every editable field. Omitted optional fields are cleared.
func (r UpdateClientRequest) Changes() Changes {
	empty := func(s *string) *string {
		if s == nil {
			v := ""
			return &v
		}
		return s
	}
	return Changes{
		Name:    &r.Name,
		Email:   &r.Email,
		Company: empty(r.Company),
		Address: empty(r.Address),
		Notes:   empty(r.Notes),
	}
}

// PatchClientRequest is the body of a partial update.
type PatchClientRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=255"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Company   *string `json:"company" validate:"omitempty,max=255"`
	Address   *string `json:"address"`
	Notes     *string `json:"notes"`
	ManagerID *int64  `json:"manager_id" validate:"omitempty,gt=0"`
}

// Changes returns the fields the request names.
func (r PatchClientRequest) Changes() Changes {
	return Changes{
		Name:      r.Name,
		Email:     r.Email,
		Company:   r.Company,
		Address:   r.Address,
		Notes:     r.Notes,
		ManagerID: r.ManagerID,
	}
}
