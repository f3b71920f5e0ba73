// Command shop runs the shop HTTP API.
package main

import (
	"log"

	"github.com/patric-chuzhbe/shop/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	if err := application.Run(); err != nil {
		log.Printf("Application error: %v", err)
	}
}
