package main

import "github.com/skyrag-assistant/server/internal/cli"

func main() {
	cli.Execute()
}
