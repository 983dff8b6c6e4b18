package main

import (
	"flag"
	"fmt"
	"log"

	"growth-ledger/internal/auth"
	"growth-ledger/internal/config"
)

// Prints an operator bearer token for the /api/admin routes.
func main() {
	subject := flag.String("subject", "", "operator name recorded with admin actions")
	flag.Parse()

	if *subject == "" {
		log.Fatal("-subject is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	token, err := auth.NewTokenSigner(cfg.App.AdminTokenSecret, 0).IssueAdminToken(*subject)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token)
}
