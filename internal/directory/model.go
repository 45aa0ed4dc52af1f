package directory

import (
	"time"

	"github.com/google/uuid"
)

// Provider is a veterinarian in the clinic directory. The directory is
// a read-only input to the booking engine; registration and profile
// editing live elsewhere.
type Provider struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Owner struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Pet struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Species   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
