package main

import "github.com/idanmel/skyarena/internal/cli"

func main() {
	cli.Execute()
}
