package models

import "time"

// Participant is a learner's membership in a practice session
type Participant struct {
	ParticipantID string    `json:"participantId" db:"participant_id"`
	SessionID     string    `json:"sessionId" db:"session_id"`
	UserID        string    `json:"userId" db:"user_id"`
	DisplayName   string    `json:"displayName" db:"display_name"`
	Score         int       `json:"score" db:"score"`
	JoinedAt      time.Time `json:"joinedAt" db:"joined_at"`
	LastActiveAt  time.Time `json:"lastActiveAt" db:"last_active_at"`
}

// LeaderboardEntry is a ranked participant with derived presence
type LeaderboardEntry struct {
	Participant
	Rank   int  `json:"rank"`
	Active bool `json:"active"`
}
