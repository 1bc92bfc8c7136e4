package main

import "github.com/quorumgate/breaker/cmd/breaker-agent/cmd"

func main() {
	cmd.Execute()
}
