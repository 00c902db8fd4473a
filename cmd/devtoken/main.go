// devtoken mints a bearer token for local testing against the API. Accounts
// are managed elsewhere, so this is the only way to obtain a token without
// an identity provider.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/supportdesk/ticketflow/internal/auth"
	"github.com/supportdesk/ticketflow/internal/config"
	"github.com/supportdesk/ticketflow/internal/domain"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		id     string
		role   string
		secret string
		ttl    int
	)

	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.StringVar(&id, "id", "", "actor id placed in the token subject")
	flagSet.StringVar(&role, "role", string(domain.RoleCustomer), "CUSTOMER, AGENT or ADMIN")
	flagSet.StringVar(&secret, "secret", "", "signing secret (default: AUTH_JWT_SECRET from the environment)")
	flagSet.IntVar(&ttl, "ttl", 0, "lifetime in minutes (default: AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if id == "" {
		return errors.New("--id is required")
	}
	actorRole := domain.Role(strings.ToUpper(role))
	if !actorRole.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	if secret == "" || ttl == 0 {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if secret == "" {
			secret = cfg.Auth.JWTSecret
		}
		if ttl == 0 {
			ttl = cfg.Auth.AccessTokenTTLMinutes
		}
	}

	token, expiresAt, err := auth.NewTokenManager(secret, ttl).GenerateToken(domain.Actor{ID: id, Role: actorRole})
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
