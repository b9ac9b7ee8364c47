package wsd

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeFirstSeenNotDuplicate(t *testing.T) {
	d := newDedupe(10)
	assert.False(t, d.seenBefore("urn:uuid:1"))
}

func TestDedupeRepeatedIDIsDuplicate(t *testing.T) {
	d := newDedupe(10)
	assert.False(t, d.seenBefore("urn:uuid:1"))
	assert.True(t, d.seenBefore("urn:uuid:1"))
}

func TestDedupeCapacityEvictsOldest(t *testing.T) {
	d := newDedupe(10)
	for i := 0; i < 10; i++ {
		assert.False(t, d.seenBefore(fmt.Sprintf("urn:uuid:%d", i)))
	}

	// 11th distinct ID evicts "urn:uuid:0".
	assert.False(t, d.seenBefore("urn:uuid:10"))
	assert.False(t, d.seenBefore("urn:uuid:0"), "evicted ID should be re-acceptable")

	// The most recently inserted IDs are still known.
	assert.True(t, d.seenBefore("urn:uuid:10"))
}

func TestDedupeDistinctIDsDispatchOnce(t *testing.T) {
	d := newDedupe(10)
	seen := map[string]int{}
	ids := []string{"a", "b", "a", "c", "b", "a"}
	for _, id := range ids {
		if !d.seenBefore(id) {
			seen[id]++
		}
	}
	assert.Equal(t, 1, seen["a"])
	assert.Equal(t, 1, seen["b"])
	assert.Equal(t, 1, seen["c"])
}
