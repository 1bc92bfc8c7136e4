package main

import "github.com/quorumgate/breaker/cmd/breaker-server/cmd"

func main() {
	cmd.Execute()
}
