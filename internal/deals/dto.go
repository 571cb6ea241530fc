package deals

// CreateDealRequest is the body of the create action.
type CreateDealRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Status   string  `json:"status_deal" validate:"omitempty,oneof=NEW PRG COM"`
	Amount   int     `json:"amount" validate:"required,gt=0,lte=32767"`
	Notes    *string `json:"notes"`
	ClientID int64   `json:"client_id" validate:"required,gt=0"`
}

// NewDeal converts the request.
func (r CreateDealRequest) NewDeal() NewDeal {
	return NewDeal{
		Name:     r.Name,
		Status:   Status(r.Status),
		Amount:   r.Amount,
		Notes:    r.Notes,
		ClientID: r.ClientID,
	}
}

// PatchDealRequest is the body of the partial_update action.
type PatchDealRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Status   *string `json:"status_deal" validate:"omitempty,oneof=NEW PRG COM"`
	Amount   *int    `json:"amount" validate:"omitempty,gt=0,lte=32767"`
	Notes    *string `json:"notes"`
	ClientID *int64  `json:"client_id" validate:"omitempty,gt=0"`
}

// Changes returns the fields the request names.
func (r PatchDealRequest) Changes() Changes {
	c := Changes{Name: r.Name, Amount: r.Amount, Notes: r.Notes, ClientID: r.ClientID}
	if r.Status != nil {
		s := Status(*r.Status)
		c.Status = &s
	}
	return c
}
