// Package playlist resolves a station and program window into an ordered
// list of media segment locations by following the service's two-stage
// playlist chain.
package playlist
