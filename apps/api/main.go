package main

import (
	"flag"
	"log"
	"os"

	dig_container "github.com/trezcool/hackcamp/apps/api/di/dig"
)

func main() {
	inMemory := flag.Bool("inmem", false, "Keep data in memory and cache in bbolt (no PostgreSQL, no Redis).")
	graph := flag.Bool("graph", false, "Print the dependency graph in DOT format and exit.")
	flag.Parse()

	c := dig_container.New(dig_container.Options{InMemory: *inMemory})
	if *graph {
		if err := dig_container.Visualize(c, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}
	startWithDig(c, *inMemory)
}
