// Package services defines the shared error taxonomy for external
// collaborators.
//
// Adapters wrap failures with sentinel markers (transient, permanent,
// configuration, timeout) so the ingestion loop can choose between retrying
// on a later cycle and quarantining the descriptor without knowing anything
// about the underlying transport.
package services
