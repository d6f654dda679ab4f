package model

// Credentials is the access/refresh token pair for an authenticated session.
// A present access token is assumed valid until the server rejects it.
// Both tokens are cleared together on logout or renewal failure.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IsZero reports whether no session is held.
func (c Credentials) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// LoginRequest is the payload for instructor/student email login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// RefreshRequest exchanges a refresh token for a new credential pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Profile is the authenticated student's profile.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	StudentID string `json:"student_id,omitempty"`
}
