package main

import "github.com/23skdu/longbow-bodkin/internal/cli"

func main() {
	cli.Execute()
}
