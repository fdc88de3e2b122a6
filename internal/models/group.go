package models

import "github.com/google/uuid"

const (
	DefaultMaxMembers = 50
	MaxMembersLimit   = 1000
)

type GroupSettings struct {
	IsPrivate       bool `json:"isPrivate" gorm:"not null;default:false"`
	RequireApproval bool `json:"requireApproval" gorm:"not null;default:false"`
	MaxMembers      int  `json:"maxMembers" gorm:"not null;default:50"`
}

type Group struct {
	BaseModel
	Name        string            `json:"name" gorm:"type:varchar(50);not null"`
	Description string            `json:"description" gorm:"type:varchar(300);not null;default:''"`
	InviteCode  string            `json:"inviteCode" gorm:"type:varchar(12);uniqueIndex;not null"`
	AdminID     uuid.UUID         `json:"adminID" gorm:"type:uuid;not null;index"`
	Admin       User              `json:"admin" gorm:"foreignKey:AdminID"`
	IsActive    bool              `json:"isActive" gorm:"not null"`
	Settings    GroupSettings     `json:"settings" gorm:"embedded;embeddedPrefix:settings_"`
	Memberships []GroupMembership `json:"members,omitempty" gorm:"foreignKey:GroupID"`
}

// IsAdmin reports whether userID is the designated group admin.
func (g *Group) IsAdmin(userID uuid.UUID) bool {
	return g.AdminID == userID
}
