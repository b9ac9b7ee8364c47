package netmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFamilyStringNames(t *testing.T) {
	assert.Equal(t, "ipv4", FamilyV4.String())
	assert.Equal(t, "ipv6", FamilyV6.String())
}
