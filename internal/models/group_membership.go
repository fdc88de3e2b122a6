package models

import (
	"time"

	"github.com/google/uuid"
)

type GroupMembershipRole string

const (
	GroupRoleAdmin     GroupMembershipRole = "admin"
	GroupRoleModerator GroupMembershipRole = "moderator"
	GroupRoleMember    GroupMembershipRole = "member"
)

func (r GroupMembershipRole) Valid() bool {
	switch r {
	case GroupRoleAdmin, GroupRoleModerator, GroupRoleMember:
		return true
	default:
		return false
	}
}

type GroupMembership struct {
	BaseModel
	UserID   uuid.UUID           `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_user"`
	GroupID  uuid.UUID           `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_user"`
	Role     GroupMembershipRole `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	JoinedAt time.Time           `json:"joinedAt" gorm:"not null;index"`
	User     User                `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Group    *Group              `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}
