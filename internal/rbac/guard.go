package rbac

// Actor is the authenticated identity an authorization decision is made for.
// A nil *Actor means no authenticated session.
type Actor struct {
	ID          int64
	Permissions Set
}

// Ownership describes the record a single-record operation targets.
type Ownership struct {
	CreatedBy *int64
}

// OwnedBy builds the ownership requirement for a record created by createdBy.
func OwnedBy(createdBy *int64) *Ownership {
	return &Ownership{CreatedBy: createdBy}
}

// Reason classifies a denial.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnauthenticated
	ReasonPermission
	ReasonOwnership
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonPermission:
		return "permission_denied"
	case ReasonOwnership:
		return "ownership_denied"
	default:
		return "allowed"
	}
}

// Decision is the outcome of Guard.Authorize.
type Decision struct {
	Allowed  bool
	Reason   Reason
	Required Permission
}

// Err converts a denial into the matching error; Allow yields nil.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonUnauthenticated:
		return ErrUnauthenticated
	case d.Reason == ReasonPermission:
		return &PermissionError{Required: d.Required}
	default:
		return ErrOwnershipDenied
	}
}

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	RecordDecision(permission, outcome string)
}

// Guard turns a permission requirement plus an optional ownership rule into a
// single decision.
type Guard struct {
	recorder DecisionRecorder
}

// NewGuard builds a Guard. recorder may be nil.
func NewGuard(recorder DecisionRecorder) *Guard {
	return &Guard{recorder: recorder}
}

// Authorize evaluates, in order: authentication, the base permission, then
// ownership when owner is non-nil. Admin overrides ownership only; it never
// stands in for the base permission.
func (g *Guard) Authorize(actor *Actor, required Permission, owner *Ownership) Decision {
	d := decide(actor, required, owner)
	if g != nil && g.recorder != nil {
		g.recorder.RecordDecision(string(required), d.Reason.String())
	}
	return d
}

// Permit is Authorize without an ownership rule.
func (g *Guard) Permit(actor *Actor, required Permission) Decision {
	return g.Authorize(actor, required, nil)
}

func decide(actor *Actor, required Permission, owner *Ownership) Decision {
	if actor == nil {
		return Decision{Reason: ReasonUnauthenticated, Required: required}
	}
	if !actor.Permissions.Has(required) {
		return Decision{Reason: ReasonPermission, Required: required}
	}
	if owner != nil && !owns(actor, owner) && !actor.Permissions.Has(PermAdmin) {
		return Decision{Reason: ReasonOwnership, Required: required}
	}
	return Decision{Allowed: true, Required: required}
}

// Records without a creator are owned by nobody.
func owns(actor *Actor, owner *Ownership) bool {
	return owner.CreatedBy != nil && *owner.CreatedBy == actor.ID
}
