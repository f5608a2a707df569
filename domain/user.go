package domain

// User roles. New registrations default to RoleCustomer.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is a registered account. Email and NationalID are unique across all
// users; uniqueness is enforced through reference items, not schema.
type User struct {
	ID         string `json:"id"`
	NationalID string `json:"nationalId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}
