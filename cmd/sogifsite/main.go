package main

import "sogif-site/internal/cli"

func main() {
	cli.Execute()
}
