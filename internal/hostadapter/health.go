package hostadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openauthd/engine/internal/store"
)

// NewStorageHealthCheckFunc returns a go-sundheit CheckFunc that proves the
// engine's storage ports are reachable by writing and immediately revoking
// a scratch Authorization entry, grounded on the teacher's
// storage.NewCustomHealthCheckFunc (storage/health.go), which does the
// same create-then-clean-up probe against its own AuthRequest resource.
// AuthorizationStore exposes no delete, so the probe revokes its scratch
// entry rather than deleting it; a revoked ad-hoc authorization costs
// nothing and is indistinguishable from one a real expired session left
// behind.
func NewStorageHealthCheckFunc(stores store.Stores, now func() time.Time) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		a := &store.Authorization{
			ID:           uuid.NewString(),
			Subject:      "healthcheck",
			ClientID:     "healthcheck",
			Status:       store.AuthorizationValid,
			Type:         store.AuthorizationAdHoc,
			CreationDate: now(),
		}
		if err := stores.Authorizations.Create(ctx, a); err != nil {
			return nil, fmt.Errorf("create authorization: %w", err)
		}
		if err := stores.Authorizations.Revoke(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("revoke authorization: %w", err)
		}
		return nil, nil
	}
}
