package main

import "wasender/internal/cli"

func main() {
	cli.Execute()
}
