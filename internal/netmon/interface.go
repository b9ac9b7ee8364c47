// Package netmon observes OS network-interface address changes and
// reports them as a stream of add/delete events, with one implementation
// of the Source interface per supported kernel address-notification
// mechanism (Linux rtnetlink, BSD route socket).
package netmon

// Interface identifies an OS network interface the way the address
// monitor needs to: by kernel index, resolved name, and the scope value
// the kernel reported the address at.
type Interface struct {
	Index int
	Name  string
	Scope int
}

// Family distinguishes the IP address family of an AddressEvent.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV6 {
		return "ipv6"
	}
	return "ipv4"
}
