package models

// TOTP enrolment states reported by the platform in User.TOTPStatus
const (
	TOTPDisabled = 0
	TOTPPending  = 1
	TOTPEnabled  = 2
)

// User представляет участника соревнования
type User struct {
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Bio        string `json:"bio,omitempty"`
	ID         int64  `json:"id"`
	Team       int64  `json:"team,omitempty"`
	Points     int64  `json:"points,omitempty"`
	TOTPStatus int    `json:"totp_status"`
	IsStaff    bool   `json:"is_staff"`
}

// TwoFactorEnabled reports whether the user has completed TOTP enrolment
func (u *User) TwoFactorEnabled() bool {
	return u != nil && u.TOTPStatus == TOTPEnabled
}

// Team представляет команду пользователя.
// Owner ссылается на ID пользователя-владельца, Members упорядочены так,
// как их вернул сервер.
type Team struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Members     []User `json:"members"`
	ID          int64  `json:"id"`
	Owner       int64  `json:"owner"`
	Points      int64  `json:"points,omitempty"`
}

// OwnerMember returns the member record of the team owner, if present
func (t *Team) OwnerMember() *User {
	if t == nil {
		return nil
	}
	for i := range t.Members {
		if t.Members[i].ID == t.Owner {
			return &t.Members[i]
		}
	}
	return nil
}
