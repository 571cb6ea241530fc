package shared

// Role is the account role stored on every user.
type Role string

// Account roles.
const (
	RoleAdmin    Role = "ADM"
	RoleManager  Role = "MNG"
	RoleCustomer Role = "CUS"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCustomer:
		return true
	}
	return false
}

// Principal is the authenticated account a request acts on behalf of.
type Principal struct {
	UserID      int64
	Username    string
	Email       string
	Role        Role
	IsStaff     bool
	IsSuperuser bool
}

// IsAdmin reports whether the principal may manage any record.
func (p *Principal) IsAdmin() bool {
	return p != nil && (p.IsSuperuser || p.Role == RoleAdmin)
}

// IsManager reports whether the principal owns CRM records.
func (p *Principal) IsManager() bool {
	return p != nil && (p.IsAdmin() || p.Role == RoleManager)
}
