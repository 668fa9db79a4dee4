package models

// StudyStats summarizes a learner's review item collection
type StudyStats struct {
	TotalItems      int     `json:"totalItems"`
	DueToday        int     `json:"dueToday"`
	ReviewedToday   int     `json:"reviewedToday"`
	AverageEasiness float64 `json:"averageEasiness"`
	MasteredItems   int     `json:"masteredItems"`
}
