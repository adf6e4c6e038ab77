package engine_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openauthd/engine/internal/engine"
	"github.com/openauthd/engine/internal/handlerdesc"
	"github.com/openauthd/engine/internal/options"
	"github.com/openauthd/engine/internal/store"
)

func newTx(endpoint string) *engine.Transaction {
	logger := logrus.New()
	return engine.NewTransaction(&options.Options{}, store.Stores{}, logger.WithField("test", true), endpoint)
}

func TestDispatchRunsHandlersInOrder(t *testing.T) {
	registry := handlerdesc.NewRegistry()
	var order []string

	registry.Register(handlerdesc.Descriptor{
		ContextType: "token.validate", Order: 20, Label: "second",
		Implementation: handlerdesc.Singleton,
		Handler: engine.HandlerFunc(func(ctx context.Context, c *engine.Context) error {
			order = append(order, "second")
			return nil
		}),
	})
	registry.Register(handlerdesc.Descriptor{
		ContextType: "token.validate", Order: 10, Label: "first",
		Implementation: handlerdesc.Singleton,
		Handler: engine.HandlerFunc(func(ctx context.Context, c *engine.Context) error {
			order = append(order, "first")
			return nil
		}),
	})

	d := engine.NewDispatcher(registry)
	tx := newTx(options.EndpointToken)
	c := engine.NewContext("token.validate", tx)

	require.NoError(t, d.Dispatch(context.Background(), c))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatchShortCircuitsOnHandled(t *testing.T) {
	registry := handlerdesc.NewRegistry()
	ran := map[string]bool{}

	registry.Register(handlerdesc.Descriptor{
		ContextType: "token.handle", Order: 1, Label: "stops",
		Implementation: handlerdesc.Singleton,
		Handler: engine.HandlerFunc(func(ctx context.Context, c *engine.Context) error {
			ran["stops"] = true
			c.HandleRequest()
			return nil
		}),
	})
	registry.Register(handlerdesc.Descriptor{
		ContextType: "token.handle", Order: 2, Label: "never",
		Implementation: handlerdesc.Singleton,
		Handler: engine.HandlerFunc(func(ctx context.Context, c *engine.Context) error {
			ran["never"] = true
			return nil
		}),
	})

	d := engine.NewDispatcher(registry)
	tx := newTx(options.EndpointToken)
	c := engine.NewContext("token.handle", tx)

	require.NoError(t, d.Dispatch(context.Background(), c))
	assert.True(t, ran["stops"])
	assert.False(t, ran["never"])
	assert.True(t, c.IsRequestHandled())
}

func TestDispatchRespectsFilters(t *testing.T) {
	registry := handlerdesc.NewRegistry()
	called := false

	registry.Register(handlerdesc.Descriptor{
		ContextType: "token.validate", Order: 1, Label: "filtered",
		Implementation: handlerdesc.Singleton,
		Filters:        []handlerdesc.Filter{func(ctx any) bool { return false }},
		Handler: engine.HandlerFunc(func(ctx context.Context, c *engine.Context) error {
			called = true
			return nil
		}),
	})

	d := engine.NewDispatcher(registry)
	tx := newTx(options.EndpointToken)
	c := engine.NewContext("token.validate", tx)

	require.NoError(t, d.Dispatch(context.Background(), c))
	assert.False(t, called)
}

func TestDispatchRejectStopsPipeline(t *testing.T) {
	registry := handlerdesc.NewRegistry()

	registry.Register(handlerdesc.Descriptor{
		ContextType: "token.validate", Order: 1, Label: "rejects",
		Implementation: handlerdesc.Singleton,
		Handler: engine.HandlerFunc(func(ctx context.Context, c *engine.Context) error {
			c.Reject("invalid_request", "missing client_id", "")
			return nil
		}),
	})

	eng := engine.New(&options.Options{}, store.Stores{}, registry, nil)
	tx := eng.NewTransaction(options.EndpointToken)

	require.NoError(t, eng.RunPipeline(context.Background(), tx))
	assert.True(t, tx.Response.IsError())
	v, _ := tx.Response.Get("error")
	assert.Equal(t, "invalid_request", v)
}

func TestResolveHandlerRejectsWrongScopedType(t *testing.T) {
	registry := handlerdesc.NewRegistry()
	registry.Register(handlerdesc.Descriptor{
		ContextType: "token.handle", Order: 1, Label: "bad-scoped",
		Implementation: handlerdesc.Scoped,
		Handler: engine.HandlerFunc(func(ctx context.Context, c *engine.Context) error {
			return nil
		}),
	})

	d := engine.NewDispatcher(registry)
	tx := newTx(options.EndpointToken)
	c := engine.NewContext("token.handle", tx)

	err := d.Dispatch(context.Background(), c)
	assert.Error(t, err)
}
