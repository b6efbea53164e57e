package domain

// Gender codes accepted by the identity service.
const (
	GenderMale        = "M"
	GenderFemale      = "F"
	GenderOther       = "O"
	GenderUnspecified = ""
)

// Identity models the person the identity service verified ownership of an
// email address for. It is immutable client-side except for the
// profile-completion fields filled in after registration.
type Identity struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email"`
	Gender    string `json:"gender,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// DisplayName returns the name used in the post-login welcome message,
// falling back to the email when the profile has no first name yet.
func (i Identity) DisplayName() string {
	if i.FirstName != "" {
		return i.FirstName
	}
	return i.Email
}

// Session pairs an Identity with the opaque bearer token the identity
// service issued for it. A Session without an Identity must not exist; the
// two are always set and cleared together.
type Session struct {
	Identity Identity `json:"identity"`
	Token    string   `json:"token"`
}

// StateChange is published by the auth state store whenever the current
// session is set or cleared.
type StateChange struct {
	// Authenticated is true immediately after a login, false after a logout.
	Authenticated bool
	// Session is the new session when Authenticated, zero otherwise.
	Session Session
}
