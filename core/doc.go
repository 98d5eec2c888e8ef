// Package core defines the shared vocabulary of the TripMesh framework:
// content parts, turn events, conversation threads with slot state, receipts,
// execution contexts and the store interfaces that persistence layers
// implement. Higher level packages (router, dialog, handler, engine) all
// build on these types.
package core
