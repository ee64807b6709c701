package access

import (
	"github.com/ethereum/go-ethereum/common"
)

// Capability is a permission an identity may hold.
type Capability string

const (
	CanStart            Capability = "start_auction"
	CanAuthorizeUpgrade Capability = "authorize_upgrade"
	CanManageAdmins     Capability = "manage_admins"
)

// adminCapabilities is the capability set carried by the admin role.
var adminCapabilities = map[Capability]bool{
	CanStart:            true,
	CanAuthorizeUpgrade: true,
	CanManageAdmins:     true,
}

// Policy answers capability checks from the current admin membership.
type Policy struct {
	isAdmin func(common.Address) bool
}

// NewPolicy builds a policy over an admin membership test.
func NewPolicy(isAdmin func(common.Address) bool) Policy {
	return Policy{isAdmin: isAdmin}
}

// Can reports whether identity holds capability.
func (p Policy) Can(identity common.Address, capability Capability) bool {
	if identity == (common.Address{}) || p.isAdmin == nil {
		return false
	}
	if !adminCapabilities[capability] {
		return false
	}
	return p.isAdmin(identity)
}
