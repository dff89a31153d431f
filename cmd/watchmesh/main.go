// Command watchmesh is the single binary for every component: the
// server, a region relay, and the operator CLI against a running server.
package main

import "github.com/watchmesh/watchmesh/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
