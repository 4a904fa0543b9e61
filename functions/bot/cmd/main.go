package main

import (
	"log"
	"os"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/joho/godotenv"

	"github.com/stravabot/server/pkg/infrastructure/sentry"

	// Blank import to register the function
	_ "github.com/stravabot/server/functions/bot"
)

func main() {
	// LoadConfig reads .env again; this load makes PORT and FUNCTION_TARGET
	// from the file visible before the framework starts.
	_ = godotenv.Load()

	port := "8080"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	// Serve StravaBot at "/" so the router sees the real request paths.
	if os.Getenv("FUNCTION_TARGET") == "" {
		os.Setenv("FUNCTION_TARGET", "StravaBot")
	}

	if err := funcframework.Start(port); err != nil {
		sentry.Flush(2 * time.Second)
		log.Fatalf("funcframework.Start: %v\n", err)
	}
}
