package patient

import (
	"context"

	"github.com/google/uuid"
)

// PatientRepository reads and writes active patient rows. GetByID and
// FirstByOwner never return soft-deleted rows.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	FirstByOwner(ctx context.Context, userID uuid.UUID) (*Patient, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, ownerID uuid.UUID, term string, limit int) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	PatientIDExists(ctx context.Context, patientID string) (bool, error)
	OwnerExists(ctx context.Context, userID uuid.UUID) (bool, error)
}
