package build

// Version of server. Set with -ldflags during release build.
var Version = "0.0.0"

// Commit of source tree server was built from.
var Commit = "unknown"
