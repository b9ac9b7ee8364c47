package wsd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalUUIDStableUnderCaseAndPrefix(t *testing.T) {
	want := "11111111-2222-3333-4444-555555555555"

	cases := []string{
		"urn:uuid:11111111-2222-3333-4444-555555555555",
		"URN:UUID:11111111-2222-3333-4444-555555555555",
		"uuid:11111111-2222-3333-4444-555555555555",
		"11111111-2222-3333-4444-555555555555",
		"  urn:uuid:11111111-2222-3333-4444-555555555555  ",
	}
	for _, c := range cases {
		assert.Equal(t, want, CanonicalUUID(c), "input %q", c)
	}
}

func TestDeviceUUIDIsStablePerHostname(t *testing.T) {
	a := DeviceUUID("alpha")
	b := DeviceUUID("alpha")
	c := DeviceUUID("beta")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewMessageIDIsURNUUID(t *testing.T) {
	id := NewMessageID()
	assert.True(t, strings.HasPrefix(id, "urn:uuid:"))
}

func TestNewMessageIDsAreUnique(t *testing.T) {
	a := NewMessageID()
	b := NewMessageID()
	assert.NotEqual(t, a, b)
}

func TestDeviceURNRoundTripsWithCanonicalUUID(t *testing.T) {
	id := DeviceUUID("gamma")
	urn := DeviceURN(id)
	assert.Equal(t, strings.ToLower(id.String()), CanonicalUUID(urn))
}
