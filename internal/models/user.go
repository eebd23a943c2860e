package models

// User is the Telegram identity attached to a request.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LanguageCode string
}

// DisplayName is the name recorded as the author of a submission.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
