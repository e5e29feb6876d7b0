package handlers

import (
	loggingpkg "github.com/drblury/routewire/internal/runtime/logging"
	metadatapkg "github.com/drblury/routewire/internal/runtime/metadata"
)

// MessageContextBase provides common functionality for all request context
// types. It holds the composite metadata and logger shared by JSON and proto
// handlers.
type MessageContextBase struct {
	Metadata metadatapkg.Metadata
	Logger   loggingpkg.ServiceLogger
}

// CloneMetadata returns a copy of the composite metadata so handlers can
// safely mutate entries without touching the original frame.
func (b MessageContextBase) CloneMetadata() metadatapkg.Metadata {
	return b.Metadata.Clone()
}

// Get retrieves a metadata entry by key.
func (b MessageContextBase) Get(key string) string {
	return b.Metadata[key]
}

// Route returns the route tag the message was dispatched on.
func (b MessageContextBase) Route() string {
	return b.Metadata.Route()
}

// CorrelationID returns the correlation ID from metadata, if present.
func (b MessageContextBase) CorrelationID() string {
	return b.Metadata.CorrelationID()
}
