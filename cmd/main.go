package main

import (
	"log"

	"githubhotspot/logger"
)

func main() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("hotspot: %v", err)
	}
}
