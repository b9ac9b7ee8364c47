package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsBothFamiliesDisabled(t *testing.T) {
	c := &Config{IPv4Only: true, IPv6Only: true}
	assert.ErrorIs(t, c.Validate(), ErrBothFamiliesDisabled)
}

func TestValidateAcceptsDefault(t *testing.T) {
	c := &Config{}
	assert.NoError(t, c.Validate())
}

func TestValidateAcceptsOneFamilyRestricted(t *testing.T) {
	assert.NoError(t, (&Config{IPv4Only: true}).Validate())
	assert.NoError(t, (&Config{IPv6Only: true}).Validate())
}

func TestInterfaceAllowedEmptyListAcceptsAll(t *testing.T) {
	c := &Config{}
	assert.True(t, c.InterfaceAllowed("eth0", "10.0.0.1"))
}

func TestInterfaceAllowedMatchesNameOrAddress(t *testing.T) {
	c := &Config{Interfaces: []string{"eth0", "10.0.0.5"}}
	assert.True(t, c.InterfaceAllowed("eth0", "192.168.1.1"))
	assert.True(t, c.InterfaceAllowed("wlan0", "10.0.0.5"))
	assert.False(t, c.InterfaceAllowed("wlan1", "10.0.0.6"))
}

func TestShortHostnameStripsDomain(t *testing.T) {
	assert.Equal(t, "alpha", ShortHostname("alpha.example.com"))
	assert.Equal(t, "alpha", ShortHostname("alpha"))
}

func TestApplyOverlayFileFillsZeroFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wsdd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: example.com\nworkgroup: LAB\ninterfaces: [eth0, eth1]\n"), 0o644))

	c := &Config{}
	require.NoError(t, c.ApplyOverlayFile(path))

	assert.Equal(t, "example.com", c.Domain)
	assert.Equal(t, "LAB", c.Workgroup)
	assert.Equal(t, []string{"eth0", "eth1"}, c.Interfaces)
}

func TestApplyOverlayFileDoesNotOverrideFlagsAlreadySet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wsdd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: example.com\n"), 0o644))

	c := &Config{Domain: "fromflag.example.com"}
	require.NoError(t, c.ApplyOverlayFile(path))

	assert.Equal(t, "fromflag.example.com", c.Domain)
}

func TestApplyOverlayFileMissingFileErrors(t *testing.T) {
	c := &Config{}
	assert.Error(t, c.ApplyOverlayFile("/nonexistent/path/wsdd.yaml"))
}
