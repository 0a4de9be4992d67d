// Package models defines the data types shared by every crowdq layer.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): values read from or written to the remote playback service
//   - [Track] : catalog metadata for a single track reference
//   - [Playback] : the remote device's current playback state
//   - [Device] : a playback target known to the remote service
//   - [Playlist] : basic playlist metadata
//   - [Snapshot] : the watcher's last observed playback, compared by track reference
//
// 2. Persistent Entities: database-backed catalog rows
//   - [CatalogTrack] : a cached [Track] keyed by its reference
//
// Persistent entities implement [Model]; [Repository] is the CRUD contract their stores satisfy.
package models
