package main

import "github.com/oshokin/sos-responder/cmd/sos-admin/cmd"

func main() {
	cmd.Execute()
}
