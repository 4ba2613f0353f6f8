package realtime

// Entity is a piece of client state that must be re-fetched after a change.
type Entity string

const (
	EntitySession      Entity = "session"
	EntitySubscription Entity = "subscription"
	EntityPayments     Entity = "payments"
	EntityAlerts       Entity = "alerts"
	EntityGroup        Entity = "group"
	EntityMembers      Entity = "members"
	EntityTurns        Entity = "turns"
	EntityDashboard    Entity = "dashboard"
	EntityAccounts     Entity = "accounts"
	EntityStats        Entity = "stats"
)

var invalidations = map[EventType][]Entity{
	EventSync:             {EntitySubscription, EntityPayments, EntityAlerts, EntityGroup, EntityMembers, EntityTurns, EntityDashboard},
	EventProfileCreated:   {EntityAccounts, EntityStats},
	EventProfileUpdated:   {EntitySubscription, EntityAccounts, EntityStats},
	EventProfileDeleted:   {EntitySession, EntityAccounts, EntityStats},
	EventPaymentSubmitted: {EntityPayments, EntityStats},
	EventPaymentUpdated:   {EntitySubscription, EntityPayments, EntityAccounts, EntityStats},
	EventAlertCreated:     {EntityAlerts},
	EventAlertSeen:        {EntityAlerts},
	EventGroupUpdated:     {EntityGroup, EntityDashboard},
	EventMembersChanged:   {EntityMembers, EntityDashboard},
	EventTurnAdvanced:     {EntityGroup, EntityTurns, EntityDashboard},
	EventSessionRevoked:   {EntitySession},
}

// Invalidates returns the entities a client must refresh after an event of
// type t. Unknown types invalidate nothing.
func Invalidates(t EventType) []Entity {
	entities := invalidations[t]
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}
