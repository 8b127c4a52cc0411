package main

import "github.com/jhoicas/emissor-nfse/internal/cli"

func main() {
	cli.Execute()
}
