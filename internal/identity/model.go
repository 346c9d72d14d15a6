package identity

import "time"

// Role controls access to the admin surfaces.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleAccountManager Role = "account_manager"
	RoleSupport        Role = "support"
	RoleUser           Role = "user"
)

// User represents a registered account holder.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash []byte
	FirstName    string
	LastName     string
	Phone        string
	Country      string
	City         string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

// FullName renders the card holder name, falling back to the username.
func (u User) FullName() string {
	name := u.FirstName + " " + u.LastName
	if name == " " {
		return u.Username
	}
	return name
}

// Credentials carries a registration or login request.
type Credentials struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Country   string
	City      string
}
