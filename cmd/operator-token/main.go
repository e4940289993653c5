package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// operator-token mints a bearer token for the reconciliation endpoints.
func main() {
	logg := logger.New(logger.Options{ServiceName: "operator-token"})
	_ = godotenv.Load()

	subject := flag.String("subject", "", "operator identity recorded on resolved attempts")
	role := flag.String("role", string(enums.OperatorRoleViewer), "viewer|reconciler")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	parsedRole, err := enums.ParseOperatorRole(*role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	token, err := auth.MintOperatorToken(cfg.Operator, time.Now(), auth.OperatorTokenPayload{
		Subject: *subject,
		Role:    parsedRole,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
