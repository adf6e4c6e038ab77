package handlerdesc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openauthd/engine/internal/handlerdesc"
)

func TestListSortsByOrderWithStableTies(t *testing.T) {
	r := handlerdesc.NewRegistry()
	r.Register(handlerdesc.Descriptor{ContextType: "validate.token", Order: 2000, Label: "b"})
	r.Register(handlerdesc.Descriptor{ContextType: "validate.token", Order: 1000, Label: "a"})
	r.Register(handlerdesc.Descriptor{ContextType: "validate.token", Order: 1000, Label: "a2"})
	r.Register(handlerdesc.Descriptor{ContextType: "validate.token", Order: 500, Label: "z"})

	got := r.List("validate.token")
	labels := make([]string, len(got))
	for i, d := range got {
		labels[i] = d.Label
	}
	assert.Equal(t, []string{"z", "a", "a2", "b"}, labels)
}

func TestHasOrigin(t *testing.T) {
	r := handlerdesc.NewRegistry()
	r.Register(handlerdesc.Descriptor{ContextType: "validate.token", Order: 100, Origin: handlerdesc.BuiltIn})
	assert.False(t, r.HasOrigin("validate.token", handlerdesc.Custom))

	r.Register(handlerdesc.Descriptor{ContextType: "validate.token", Order: 50, Origin: handlerdesc.Custom})
	assert.True(t, r.HasOrigin("validate.token", handlerdesc.Custom))
}
