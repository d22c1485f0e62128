package models

import (
	"time"

	"github.com/google/uuid"
)

// DonorAccount is the donor profile of an identity. An identity has at most one.
type DonorAccount struct {
	DonorID     uuid.UUID // UUIDv7
	IdentityID  string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
