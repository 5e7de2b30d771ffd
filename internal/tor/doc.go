// Package tor routes fetcher traffic through a SOCKS5 proxy.
//
// Client talks to an already running proxy (usually a local Tor daemon on
// 127.0.0.1:9050). EmbeddedTor starts a private Tor daemon with tornago and
// hands out Clients bound to its SOCKS port. Either way the result is a plain
// *http.Client that fetcher.WithHTTPClient accepts.
package tor
