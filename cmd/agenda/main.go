package main

import "github.com/felixgeelhaar/agenda/cmd/agenda/cli"

func main() {
	cli.Execute()
}
