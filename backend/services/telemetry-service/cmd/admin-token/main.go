// Command admin-token mints an operator token for the mapping registration endpoint.
package main

import (
	"flag"
	"fmt"
	"os"

	libconfig "evtelemetry/backend/libs/config"
	"evtelemetry/backend/services/telemetry-service/internal/auth"
	"evtelemetry/backend/services/telemetry-service/internal/config"
)

func main() {
	subject := flag.String("subject", "operator", "token subject")
	role := flag.String("role", auth.RoleAdmin, "role claim")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to the configured admin token ttl")
	flag.Parse()

	// storage settings are irrelevant here, so Validate is skipped
	cfg := config.Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		fail(err)
	}
	if !cfg.AuthEnabled() {
		fail(fmt.Errorf("TELEMETRY_ADMIN_JWT_SECRET is not set"))
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewTokenService(cfg.Auth.Secret, lifetime).GenerateToken(*subject, *role)
	if err != nil {
		fail(err)
	}
	fmt.Println(token)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "admin-token:", err)
	os.Exit(1)
}
