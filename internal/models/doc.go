// Package models defines domain entities and the persistence interface for the musync liked-songs sync service.
//
// The package contains two categories of types:
//
// 1. Provider DTOs: values returned by platform adapters
//   - [PlatformSong] : a liked track as a provider reports it
//   - [Credentials] : an OAuth token pair from a code exchange
//
// 2. Persistent Entities
//   - [User] : account owning platforms, songs and history
//   - [Platform] : one provider connection per user and [PlatformType]
//   - [Song] : library entry keyed by normalized title and artist, tagged with platform IDs
//   - [SyncHistory] : immutable audit record of a sync run
//
// [Store] is the repository contract; internal/repositories provides the SQL implementation.
package models
