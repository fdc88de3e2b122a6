package models

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

type User struct {
	BaseModel
	Name             string            `json:"name" gorm:"type:varchar(100);not null"`
	Email            string            `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash     string            `json:"-" gorm:"type:text;not null"`
	Bio              string            `json:"bio" gorm:"type:varchar(500);not null;default:''"`
	Role             UserRole          `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsActive         bool              `json:"isActive" gorm:"not null"`
	GroupMemberships []GroupMembership `json:"-" gorm:"foreignKey:UserID"`
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// UserSummary is the public projection of a user embedded in other payloads.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID.String(), Name: u.Name, Email: u.Email}
}
