package wsd

import (
	"strings"

	"github.com/google/uuid"
)

// NewMessageID returns a fresh urn:uuid MessageID, using a time-based (v1)
// UUID the way the upstream daemon's message IDs are meant to be roughly
// orderable by generation time.
func NewMessageID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		// NewUUID only fails if the node/clock sequence can't be read;
		// a random UUID is still a perfectly valid MessageID.
		id = uuid.New()
	}
	return "urn:uuid:" + id.String()
}

// NewSequenceID returns a fresh urn:uuid AppSequence/@SequenceId value.
func NewSequenceID() string {
	return "urn:uuid:" + uuid.New().String()
}

// DeviceUUID derives a stable per-host device UUID from hostname the way
// the upstream daemon does when no fixed UUID is configured: a UUIDv5 over
// NAMESPACE_DNS.
func DeviceUUID(hostname string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(hostname))
}

// CanonicalUUID extracts and lowercases the UUID text from a urn:uuid:...
// endpoint address, making registry lookups stable under case and prefix
// variation (a bare UUID, "uuid:...", or "urn:uuid:..." all resolve the
// same key).
func CanonicalUUID(urn string) string {
	s := strings.ToLower(strings.TrimSpace(urn))
	s = strings.TrimPrefix(s, "urn:")
	s = strings.TrimPrefix(s, "uuid:")
	return s
}

// DeviceURN formats a canonical urn:uuid: endpoint address.
func DeviceURN(id uuid.UUID) string {
	return "urn:uuid:" + id.String()
}
