package main

import "github.com/oshokin/sos-responder/cmd/sos-claim/cmd"

func main() {
	cmd.Execute()
}
