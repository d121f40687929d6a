package treatment

import "context"

type Repository interface {
	// Create fails with ErrTreatmentExists when the appointment already has
	// a treatment.
	Create(ctx context.Context, t *Treatment) error
	List(ctx context.Context, f Filter) ([]*Record, error)
	Count(ctx context.Context) (int, error)
}
