package model

// TeamMember is a person issues can be assigned to. AssignedCount is derived
// from the current issues whenever members are listed.
type TeamMember struct {
	ID            string `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	Email         string `db:"email" json:"email"`
	AssignedCount int    `db:"-" json:"assignedCount"`
	Role          string `db:"role" json:"role"`
	Capacity      int    `db:"capacity" json:"capacity"`
}
