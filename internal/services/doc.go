// Package services holds cross-cutting helpers shared by the service
// clients: error classification markers consumed by the queue layer and
// context annotations used for structured logging.
package services
