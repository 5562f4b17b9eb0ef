package main

import "pool-block-alerts/internal/cli"

func main() {
	cli.Execute()
}
