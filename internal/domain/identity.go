package domain

// Identity is the DataHub account the checks run as.
// It is loaded once per run and never modified afterwards.
type Identity struct {
	Token    string
	OwnerID  string
	Email    string
	Username string
}

// UserInfo mirrors the on-disk DataHub client config
type UserInfo struct {
	Token   string      `json:"token"`
	Profile UserProfile `json:"profile"`
}

// UserProfile is the profile section of UserInfo
type UserProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Identity converts the config file representation into an Identity
func (u UserInfo) Identity() Identity {
	return Identity{
		Token:    u.Token,
		OwnerID:  u.Profile.ID,
		Email:    u.Profile.Email,
		Username: u.Profile.Username,
	}
}
