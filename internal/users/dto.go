package users

// RegistrationRequest is the body of the registration action.
type RegistrationRequest struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	Username   string `json:"username" validate:"omitempty,max=255"`
	FirstName  string `json:"first_name" validate:"max=45"`
	LastName   string `json:"last_name" validate:"max=45"`
	Password   string `json:"password" validate:"required"`
	RePassword string `json:"re_password" validate:"required,eqfield=Password"`
}

// ActivationRequest is the body of the activate action.
type ActivationRequest struct {
	UID   string `json:"uid" validate:"required"`
	Token string `json:"token" validate:"required"`
}

// UpdateUserRequest is the body of a full user_update.
type UpdateUserRequest struct {
	Username    string  `json:"username" validate:"required,max=255"`
	FirstName   string  `json:"first_name" validate:"required,max=45"`
	LastName    string  `json:"last_name" validate:"required,max=45"`
	Email       string  `json:"email" validate:"required,email,max=254"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,e164"`
}

// Changes converts the request into a full set of changes.
func (r UpdateUserRequest) Changes() Changes {
	phone := ""
	if r.PhoneNumber != nil {
		phone = *r.PhoneNumber
	}
	return Changes{
		Username:    &r.Username,
		FirstName:   &r.FirstName,
		LastName:    &r.LastName,
		Email:       &r.Email,
		PhoneNumber: &phone,
	}
}

// PatchUserRequest is the body of a partial user_update.
type PatchUserRequest struct {
	Username    *string `json:"username" validate:"omitempty,min=1,max=255"`
	FirstName   *string `json:"first_name" validate:"omitempty,max=45"`
	LastName    *string `json:"last_name" validate:"omitempty,max=45"`
	Email       *string `json:"email" validate:"omitempty,email,max=254"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,e164"`
}

// Changes converts the request into the changes it names.
func (r PatchUserRequest) Changes() Changes {
	return Changes{
		Username:    r.Username,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
	}
}
