// Package types defines the identity model of the negotiation broker:
// organizations, seats, users, listings, offer threads, offers, promotions
// and notifications, together with their lifecycle rules, the storage
// contract payloads, and the domain error codes shared by every layer.
//
// The types carry no I/O. Lifecycle methods mutate the value in memory and
// the caller persists the result through a storage port.
package types
