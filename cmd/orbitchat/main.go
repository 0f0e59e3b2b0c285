package main

import (
	"log"

	"github.com/blackorbit/orbitchat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
