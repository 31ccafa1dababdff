package authority

import "treasury/internal/models"

// Actor is the already-authenticated caller of a lifecycle command.
type Actor struct {
	UserID         string
	OrganizationID string
	Roles          []string
	CreatorType    models.CreatorType
}

func (a Actor) IsAdmin() bool {
	return IsAdmin(a.Roles)
}

func (a Actor) CanDisburse() bool {
	return CanDisburse(a.Roles)
}

func (a Actor) Level() Level {
	return HighestLevel(a.Roles)
}
