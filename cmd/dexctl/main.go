package main

import "github.com/aman-zulfiqar/simpledex-engine/internal/cli"

func main() {
	cli.Execute()
}
