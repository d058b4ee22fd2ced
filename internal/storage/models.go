package storage

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is a published constants document.
type Snapshot struct {
	ID          int64
	Document    []byte
	Source      string
	PublishedAt time.Time
}

// Lead is one lead-capture form submission.
type Lead struct {
	ID               uuid.UUID
	Email            string
	Phone            *string
	InvestmentMinK   *int
	InvestmentMaxK   *int
	Source           string
	TurnstileSuccess bool
	IPHash           *string
	UserAgent        *string
	CreatedAt        time.Time
}
