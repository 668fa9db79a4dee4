package database

// PracticeStore serves practice sessions and their participants from one connection
type PracticeStore struct {
	*SessionRepository
	*ParticipantRepository
}

// NewPracticeStore creates a store over db
func NewPracticeStore(db *DB) *PracticeStore {
	return &PracticeStore{
		SessionRepository:     NewSessionRepository(db),
		ParticipantRepository: NewParticipantRepository(db),
	}
}
