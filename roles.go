package auth

// UserRole is the account's global role
type UserRole = string

const (
	// RoleAnalyst is the default role for back-office staff (self-service only)
	RoleAnalyst UserRole = "analyst"
	// RoleAdmin can manage accounts and read the action log
	RoleAdmin UserRole = "admin"
)

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleAnalyst, RoleAdmin:
		return true
	default:
		return false
	}
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleAnalyst,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// Department is the analyst's business unit
type Department = string

const (
	DepartmentIT        Department = "IT"
	DepartmentFinance   Department = "Finance"
	DepartmentHR        Department = "HR"
	DepartmentMarketing Department = "Marketing"
)

// IsValidDepartment checks the department against the closed set
func IsValidDepartment(d Department) bool {
	switch d {
	case DepartmentIT, DepartmentFinance, DepartmentHR, DepartmentMarketing:
		return true
	default:
		return false
	}
}

// GetAllDepartments returns all predefined departments
func GetAllDepartments() []Department {
	return []Department{
		DepartmentIT,
		DepartmentFinance,
		DepartmentHR,
		DepartmentMarketing,
	}
}

// ParseDepartment safely parses a string into a Department type
func ParseDepartment(s string) (Department, bool) {
	d := Department(s)
	return d, IsValidDepartment(d)
}
