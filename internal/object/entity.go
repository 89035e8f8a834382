package object

// Entity is the narrow capability interface through which the awareness
// engine observes the object graph. The engine never mutates an Entity;
// owners publish changes through the engine's notify calls.
type Entity interface {
	ID() ID
	Kind() Kind
	Planet() Planet
	Instance() Instance
	Position() Position
	// Parent returns the object directly containing this one: a cell for
	// structural containment, any other object for inventory/equipment.
	Parent() (ID, bool)
	// LoadRange is the preferred perception radius in meters. For cells and
	// buildings it is the preference only; the engine adds the inherited part.
	LoadRange() float64
	AwarenessEnabled() bool
}
