// Package repositories implements SQLite persistence for the track catalog.
//
// The playlist cache holds tracks only by reference. The catalog keeps the title,
// artists and duration of every track the system has seen so display layers and
// seeding can name a ref without another remote call.
//
// Key Implementations:
//   - [TrackRepository] : CRUD over catalog rows, implementing models.Repository
//   - [TrackCatalog] : upsert and lookup by reference on top of [TrackRepository]
package repositories
