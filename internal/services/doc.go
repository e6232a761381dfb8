// Package services defines the [Adapter] interface for music streaming providers and implements it
// for Spotify, Apple Music and SoundCloud.
//
// # Adapter Interface
//
// Every provider exposes the same capability surface: OAuth authorization, connect/disconnect,
// liked-songs retrieval, search and add-to-library. Sync and import code only ever talks to
// [Adapter] values looked up from a [Registry].
//
// Adapters hold read-only application configuration. Per-user credentials live on the
// [models.Platform] passed to each call.
//
// # Token Refresh
//
// All adapters share one policy: when a call is rejected with 401 the platform's refresh token
// is exchanged once, the new pair is written back to the platform row, and the call is retried
// once. A second rejection surfaces as [shared.ErrAuthExpired].
//
// Each provider call runs under the configured per-call timeout. A timed out call surfaces as
// [shared.ErrProviderTimeout]; 5xx, 429 and network failures surface as
// [shared.ErrProviderUnavailable].
//
// # Spotify
//
// [SpotifyAdapter] uses github.com/zmb3/spotify/v2 for /me/tracks paging, search and saving.
//
// # Apple Music
//
// [AppleMusicAdapter] sends a developer token (static, or an ES256 JWT signed with the
// configured .p8 key) alongside the user's Music-User-Token.
//
// # SoundCloud
//
// [SoundCloudAdapter] authenticates with an "OAuth" authorization header and follows
// linked-partitioning next_href links. SoundCloud has no albums, so a track's genre is used in
// its place.
//
// # Rate Limiting
//
// [NewHTTPClient] wraps a transport with a shared token-bucket limiter from golang.org/x/time/rate.
package services
