package domain

import "time"

// Entity is a persisted record keyed by id.
// Repositories use it to mint ids on import and to maintain created/updated stamps.
type Entity interface {
	EntityID() string
	SetEntityID(id string)
	Stamps() (created, updated time.Time)
	Stamp(created, updated time.Time)
}
