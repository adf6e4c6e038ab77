package memstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openauthd/engine/internal/memstore"
	"github.com/openauthd/engine/internal/store"
)

func TestRedeemIsAtomic(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.Tokens.Create(ctx, &store.Token{ID: "code-1", Status: store.TokenValid}))

	const n = 20
	var successes int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := s.Tokens.Redeem(ctx, "code-1", time.Now()); err == nil {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
}

func TestRevocationCascade(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	require.NoError(t, s.Authorizations.Create(ctx, &store.Authorization{
		ID: "authz-1", Subject: "alice", ClientID: "c1", Status: store.AuthorizationValid,
	}))
	require.NoError(t, s.Tokens.Create(ctx, &store.Token{
		ID: "tok-1", AuthorizationID: "authz-1", Status: store.TokenValid,
	}))
	require.NoError(t, s.Tokens.Create(ctx, &store.Token{
		ID: "tok-2", AuthorizationID: "authz-1", Status: store.TokenValid,
	}))

	require.NoError(t, s.Authorizations.Revoke(ctx, "authz-1"))

	for _, id := range []string{"tok-1", "tok-2"} {
		tok, err := s.Tokens.Find(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, store.TokenRevoked, tok.Status)
	}
}
