package main

import "github.com/earthquake-city/quake-alerts/internal/cli"

func main() {
	cli.Execute()
}
