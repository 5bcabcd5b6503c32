package domain

const (
	RoleStudent = "student"
	RoleAlumni  = "alumni"
	RoleAdmin   = "admin"
)

type Role struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Roles lists every role a directory identity can hold.
var Roles = []Role{
	{Name: RoleStudent, Description: "Currently enrolled student"},
	{Name: RoleAlumni, Description: "Graduate of the institution"},
	{Name: RoleAdmin, Description: "Directory administrator"},
}
