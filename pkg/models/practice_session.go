package models

import "time"

// PracticeSession is a shared session learners join by code
type PracticeSession struct {
	SessionID       string     `json:"sessionId" db:"session_id"`
	SessionCode     string     `json:"sessionCode" db:"session_code"`
	HostUserID      string     `json:"hostUserId" db:"host_user_id"`
	IsActive        bool       `json:"isActive" db:"is_active"`
	MaxParticipants int        `json:"maxParticipants" db:"max_participants"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	EndedAt         *time.Time `json:"endedAt,omitempty" db:"ended_at"`
}
