package wsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryUpsertCreatesAndUpdates(t *testing.T) {
	r := NewRegistry()

	r.Upsert("abc", func(d *Device) { d.DisplayName = "first" })
	dev, ok := r.Get("abc")
	assert.True(t, ok)
	assert.Equal(t, "first", dev.DisplayName)

	r.Upsert("abc", func(d *Device) { d.DisplayName = "second" })
	dev, ok = r.Get("abc")
	assert.True(t, ok)
	assert.Equal(t, "second", dev.DisplayName)
}

func TestRegistryDeleteRemovesDevice(t *testing.T) {
	r := NewRegistry()
	r.Upsert("abc", func(d *Device) {})
	r.Delete("abc")

	_, ok := r.Get("abc")
	assert.False(t, ok)
}

func TestRegistryDeleteMissingIsNoOp(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Delete("nonexistent") })
}

func TestRegistryClearEmptiesAll(t *testing.T) {
	r := NewRegistry()
	r.Upsert("a", func(d *Device) {})
	r.Upsert("b", func(d *Device) {})
	r.Clear()
	assert.Empty(t, r.List())
}

func TestDeviceAddAddressTracksPerInterface(t *testing.T) {
	d := newDevice("abc")
	d.AddAddress("eth0", "10.0.0.1")
	d.AddAddress("eth0", "10.0.0.2")
	d.AddAddress("wlan0", "10.0.0.1")

	assert.Len(t, d.Addresses["eth0"], 2)
	assert.Len(t, d.Addresses["wlan0"], 1)
}
