// Package models holds the GORM models persisted by the API.
package models

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Group{},
		&GroupMembership{},
		&Event{},
		&EventAttendee{},
		&FunScore{},
		&FunScoreHistory{},
		&AuditLog{},
		&AuditExportCursor{},
		&Activity{},
	}
}
