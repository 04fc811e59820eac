// Package platform provides PlatformPublisher implementations and the registry
// the orchestrator dispatches through.
//
// Adding a platform means registering a new core.PlatformPublisher under its
// identifier; nothing in the orchestrator branches on platform names.
package platform
