// Command tunecache drives the offline media cache from the command line.
//
// It downloads songs and albums from a remote content provider into the
// configured storage backend, lists and deletes what is kept offline,
// resolves stored items into playback references and, with `serve`, exposes
// those references over a local HTTP endpoint.
package main
