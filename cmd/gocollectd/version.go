package main

var (
	// Version holds version of the binary, set at build time.
	Version string
	// GitCommit holds the git commit, set at build time.
	GitCommit string
	// BuildDate holds the date the binary was built, set at build time.
	BuildDate string
)
