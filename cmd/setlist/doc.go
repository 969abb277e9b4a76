// Package main hosts the setlist CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into index
// operations: registering locations, running scans, launching the watching
// daemon, correlating exports, ranking similar projects, and configuration
// scaffolding. It centralizes configuration resolution and store access so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
