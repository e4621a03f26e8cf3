package main

import (
	"log"

	"github.com/m3rciful/surveybot/app"
	corecmd "github.com/m3rciful/surveybot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		Build:             app.Build,
	})
	if err != nil {
		log.Fatalf("surveybot: %v", err)
	}
}
