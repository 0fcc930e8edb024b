// Package server hosts the Fiber application behind the mirror mode: it
// replays the on-disk HTTP cache to other processes on the network, so a
// machine that has already resolved a dependency graph can act as an
// offline module mirror. Redirect records are replayed as 302 responses
// with their stored location header; content records stream the cached
// body with the persisted content-type. The mirror never fetches from
// the upstream itself — misses are plain 404s.
package server
