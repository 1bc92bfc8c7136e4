package main

import "github.com/quorumgate/breaker/cmd/breaker-operator/cmd"

func main() {
	cmd.Execute()
}
