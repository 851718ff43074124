// README: Trip aggregate (ride or delivery) and its per-kind state machine.
package trip

import (
	"time"

	"ridedesk/internal/types"
)

type Kind string

const (
	KindRide     Kind = "ride"
	KindDelivery Kind = "delivery"
)

type Status string

const (
	StatusNone       Status = ""
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPickedUp   Status = "PICKED_UP"
	StatusCompleted  Status = "COMPLETED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Action is a driver-initiated lifecycle step.
type Action string

const (
	ActionPickup   Action = "pickup"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionDeliver  Action = "deliver"
)

type DeliveryDetails struct {
	PackageType   string `json:"package_type"`
	ReceiverName  string `json:"receiver_name"`
	ReceiverPhone string `json:"receiver_phone"`
}

type Trip struct {
	ID            types.ID         `json:"id"`
	Kind          Kind             `json:"kind"`
	RequesterID   types.ID         `json:"requester_id"`
	DriverID      *types.ID        `json:"driver_id,omitempty"`
	Status        Status           `json:"status"`
	StatusVersion int              `json:"status_version"`
	Pickup        types.Place      `json:"pickup"`
	Dropoff       types.Place      `json:"dropoff"`
	Category      string           `json:"category"`
	FareEstimate  types.Money      `json:"fare_estimate"`
	Delivery      *DeliveryDetails `json:"delivery,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	AcceptedAt    *time.Time       `json:"accepted_at,omitempty"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
	CancelReason  *string          `json:"cancel_reason,omitempty"`
}

// DriverStats aggregates a driver's finished trips. Earnings sum the fare
// estimates of COMPLETED rides and DELIVERED parcels.
type DriverStats struct {
	CompletedRides      int         `json:"completed_rides"`
	CompletedDeliveries int         `json:"completed_deliveries"`
	Earnings            types.Money `json:"earnings"`
}

func (s DriverStats) CompletedTrips() int { return s.CompletedRides + s.CompletedDeliveries }

type Event struct {
	ID         int64
	TripID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// Assignable is the capability the lifecycle and resolution engines need from a
// trip record. Rides and deliveries share it.
type Assignable interface {
	CurrentStatus() Status
	SetStatus(Status)
	AssignedDriver() *types.ID
	AssignDriver(*types.ID)
}

func (t *Trip) CurrentStatus() Status { return t.Status }
func (t *Trip) SetStatus(s Status) { t.Status = s }
func (t *Trip) AssignedDriver() *types.ID { return t.DriverID }
func (t *Trip) AssignDriver(id *types.ID) { t.DriverID = id }

// IsAssignedTo reports whether driverID holds this trip.
func (t *Trip) IsAssignedTo(driverID types.ID) bool {
	return t.DriverID != nil && *t.DriverID == driverID
}

// Machine is the status flow for one trip kind. Both kinds share the same shape;
// they differ only in the names of the underway and finished states.
type Machine struct {
	Kind     Kind
	Underway Status
	Finished Status

	transitions map[Status][]Status
}

func newMachine(kind Kind, underway, finished Status) Machine {
	return Machine{
		Kind:     kind,
		Underway: underway,
		Finished: finished,
		transitions: map[Status][]Status{
			StatusPending:  {StatusAccepted, StatusCancelled},
			StatusAccepted: {underway, StatusCancelled},
			underway:       {finished, StatusCancelled},
		},
	}
}

var machines = map[Kind]Machine{
	KindRide:     newMachine(KindRide, StatusInProgress, StatusCompleted),
	KindDelivery: newMachine(KindDelivery, StatusPickedUp, StatusDelivered),
}

func MachineFor(kind Kind) (Machine, bool) {
	m, ok := machines[kind]
	return m, ok
}

// CanTransition represents the trip state flow as code.
func (m Machine) CanTransition(from, to Status) bool {
	for _, s := range m.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (m Machine) Terminal(s Status) bool {
	return len(m.transitions[s]) == 0
}

// HoldsDriver reports whether a trip in status s must carry a driver id.
func (m Machine) HoldsDriver(s Status) bool {
	return s == StatusAccepted || s == m.Underway || s == m.Finished
}

// Step returns the predecessor and successor states for a driver action.
// pickup and start both move the trip underway; deliver is complete for parcels.
func (m Machine) Step(a Action) (from, to Status, ok bool) {
	switch a {
	case ActionPickup, ActionStart:
		return StatusAccepted, m.Underway, true
	case ActionComplete, ActionDeliver:
		return m.Underway, m.Finished, true
	}
	return StatusNone, StatusNone, false
}

// Apply advances t by one driver action. t is mutated only when every
// precondition holds; the returned states describe the move.
func (m Machine) Apply(t Assignable, driverID types.ID, a Action) (from, to Status, err error) {
	from, to, ok := m.Step(a)
	if !ok {
		return StatusNone, StatusNone, errUnknownAction(a)
	}
	d := t.AssignedDriver()
	if d == nil || *d != driverID {
		return StatusNone, StatusNone, ErrNotAssigned
	}
	if t.CurrentStatus() != from {
		return StatusNone, StatusNone, errWrongStage(m.Kind, a, t.CurrentStatus())
	}
	t.SetStatus(to)
	return from, to, nil
}
