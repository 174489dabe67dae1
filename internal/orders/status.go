package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

type Role string

const (
	RoleVendor Role = "vendor"
	RoleBuyer  Role = "buyer"
	RoleAdmin  Role = "admin"
)

type Actor struct {
	ID   string
	Role Role
}

// transitions lists, per current status, the reachable statuses and the
// roles allowed to take each step. delivered and cancelled are terminal.
var transitions = map[Status]map[Status][]Role{
	StatusPending: {
		StatusConfirmed: {RoleVendor},
		StatusCancelled: {RoleVendor, RoleBuyer},
	},
	StatusConfirmed: {
		StatusDelivered: {RoleVendor},
		StatusCancelled: {RoleVendor, RoleBuyer},
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// party reports whether a acts as the order's own vendor or own buyer.
func party(o Order, a Actor) bool {
	switch a.Role {
	case RoleVendor:
		return a.ID == o.VendorID
	case RoleBuyer:
		return a.ID == o.BuyerID
	}
	return false
}

// Authorize decides whether a may move o to the target status.
func Authorize(o Order, a Actor, to Status) error {
	if !to.Valid() {
		return ErrInvalidStatus
	}
	if !party(o, a) {
		return ErrForbidden
	}
	roles, ok := transitions[o.Status][to]
	if !ok {
		return ErrInvalidTransition
	}
	for _, r := range roles {
		if r == a.Role {
			return nil
		}
	}
	return ErrForbidden
}

// Counterparty is the user told about a transition made by a.
func Counterparty(o Order, a Actor) string {
	if a.Role == RoleVendor {
		return o.BuyerID
	}
	return o.VendorID
}
