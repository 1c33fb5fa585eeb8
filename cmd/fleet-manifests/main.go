package main

import "fleet-manifests/internal/cli"

func main() {
	cli.Execute()
}
