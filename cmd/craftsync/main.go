package main

import "github.com/ippclub/craftsync/internal/cli"

func main() {
	cli.Execute()
}
