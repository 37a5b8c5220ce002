// Package services defines the [Fetcher] interface for reading playlists from a streaming provider and implements it
// for the Spotify Web API.
//
// # Spotify Implementation
//
// [SpotifyService] authenticates with the OAuth2 client credentials grant. Only public playlist data is read, so no
// user authorization is involved. Tokens are cached and renewed by the [oauth2] transport.
//
// Requests are throttled by a [rate.Limiter]. A 429 response is retried after its Retry-After delay plus one second,
// drawing from a retry budget shared by all requests of the service. Once the budget is spent, requests fail with
// [shared.ErrRateLimited].
//
// # Error Handling
//
// HTTP failures are mapped onto sentinel errors from the shared package:
//   - [shared.ErrInvalidCredentials] : 401, or the token endpoint rejected the client
//   - [shared.ErrPrivatePlaylist] : 403
//   - [shared.ErrPlaylistNotFound] : 404
//   - [shared.ErrAPIRequest] : any other non-2xx status or transport failure
//
// # API Mappings
//
// Spotify responses ([SpotifyPlaylist], [SpotifyTrack]) are converted to [models.Playlist] and [models.Track].
// Null tracks (removed from the catalog) are skipped, and empty track or album names become [models.MissingValue].
package services
