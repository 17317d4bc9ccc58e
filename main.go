package main

import (
	"log"

	"github.com/mkarpov-dev/jobsieve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
