package main

import (
	"pump-signals/internal/cli"
)

func main() {
	cli.Execute()
}
