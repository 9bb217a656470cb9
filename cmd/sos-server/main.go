package main

import "github.com/oshokin/sos-responder/cmd/sos-server/cmd"

func main() {
	cmd.Execute()
}
