// Package core provides the fundamental types and interfaces for the publisher package.
//
// This package contains:
//   - ScheduledJob, Publication and SocialAccount data models with GORM annotations
//   - The scheduled job state machine (Status, CanTransition)
//   - Collaborator interfaces: Store, CredentialResolver, PlatformPublisher, PublicationLog
//   - Event types for scheduler monitoring
//   - Error types for scheduling and publishing
//
// Most users should import the root package github.com/jdziat/scheduled-publisher
// instead of this package directly.
package core
