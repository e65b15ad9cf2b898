// Package core defines the entity model, storage-engine contract, and the
// per-kind model adapters an OIDC provider library uses to persist protocol
// state: clients, sessions, grants, authorization codes, access and refresh
// tokens, device codes, and interaction records.
//
// The adapter owns no entity. It is a pass-through between the provider
// library and a StorageEngine, translating kind-specific key shapes into the
// engine's generic key space and enforcing the lifecycle invariants the
// protocol depends on: consume-once authorization codes, cascading token
// revocation when a grant is destroyed, and TTL-governed passive expiry.
package core
