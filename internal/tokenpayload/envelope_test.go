package tokenpayload_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openauthd/engine/internal/claims"
	"github.com/openauthd/engine/internal/tokenpayload"
)

func TestRoundTrip(t *testing.T) {
	p := claims.NewPrincipal("Bearer")
	p.Primary().AddClaim(claims.NewClaim("name", "Bob").WithDestinations(claims.DestinationIdentityToken))
	p.Primary().AddClaim(claims.NewClaim("email", "b@x").WithDestinations(claims.DestinationIdentityToken))
	p.SetAudiences("a1", "a2")
	p.SetTokenID("tok-1")

	var buf bytes.Buffer
	require.NoError(t, tokenpayload.Write(&buf, p, "Bearer", map[string]string{"host.ip": "10.0.0.1"}))

	got, props, err := tokenpayload.Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, []string{"a1", "a2"}, got.Audiences())
	emailClaim, ok := got.Primary().FindFirst("email")
	require.True(t, ok)
	assert.Equal(t, "b@x", emailClaim.Value)
	tokID, ok := got.TokenID()
	require.True(t, ok)
	assert.Equal(t, "tok-1", tokID)
	assert.Equal(t, "10.0.0.1", props["host.ip"])
}

func TestUnknownVersionYieldsEmptyPrincipal(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{9, 0, 0, 0}) // version = 9, little endian
	p, props, err := tokenpayload.Read(&buf)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, props)
}

func TestTruncatedStreamFails(t *testing.T) {
	p := claims.NewPrincipal("Bearer")
	var buf bytes.Buffer
	require.NoError(t, tokenpayload.Write(&buf, p, "Bearer", nil))

	truncated := buf.Bytes()[:len(buf.Bytes())-2]
	_, _, err := tokenpayload.Read(bytes.NewReader(truncated))
	require.Error(t, err)
	var parseErr *tokenpayload.ParseError
	assert.ErrorAs(t, err, &parseErr)
}
