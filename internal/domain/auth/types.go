// Package auth contains domain-level types for users and token pairs.
// It is pure and free of framework/adapter concerns.
package auth

// User is a stored user record. PasswordHash is a bcrypt hash; the
// plaintext credential never leaves the login/signup request path.
type User struct {
	ID           string
	Email        string
	Username     string
	Name         string
	PasswordHash []byte
}

// Profile is the public projection of a User returned to clients.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name"`
}

// Profile returns the public projection of the user.
func (u User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Name:     u.Name,
	}
}

// TokenPair is the result of issuing credentials for a user: a short-lived
// access token and a long-lived refresh token, signed with distinct secrets.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
