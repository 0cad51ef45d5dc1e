package main

import (
	"log"

	"github.com/anoixa/engi-tracker/config"

	"github.com/anoixa/engi-tracker/cmd"
)

func main() {
	log.Printf("engi-tracker %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
