// Package shoutcast opens HTTP and ICY/Shoutcast radio streams for playback
// and recording.
//
// Originally a fork of github.com/romantomjak/shoutcast, it has been extended:
//   - Playlist resolution: .pls and .m3u URLs are resolved to the actual stream URL
//   - Metadata stripping: ICY metadata blocks are parsed and removed so only audio bytes are returned
//   - Plain HTTP streams without icy-metaint are passed through untouched
//   - Connections are bound to a context; there is no read timeout so long-running capture works
package shoutcast
