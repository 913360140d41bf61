// Package license implements the license lifecycle engine: issuance,
// activation with exclusive device binding, verification, administrative
// device rebinding, and revocation.
//
// # Architecture Overview
//
// The package consists of three pieces:
//
//	- Engine: the state machine governing every license transition
//	- Store: the persistence contract the engine drives (implemented
//	  in internal/store)
//	- KeyGenerator: canonical license key production
//
// # State Machine
//
// A license moves through three statuses:
//
//	pending -> active    first activation binds the device
//	active  -> active    idempotent reactivation by the bound device
//	any     -> revoked   terminal, no transition leads back out
//
// A bound license may only be verified by its bound device. Moving a
// license to a different device requires the administrative rebind
// operation; Activate from a second device is always rejected.
//
// # Concurrency
//
// The engine holds no locks. Every mutation is expressed as a single
// conditional update against the store, so two concurrent activations
// from different devices cannot both observe an unbound license and
// both win; the store arbitrates and the loser gets ErrDeviceConflict.
package license
