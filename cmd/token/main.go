// Command token mints a session token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmuslimabdulj/goat-dm/internal/auth"
	"github.com/mmuslimabdulj/goat-dm/internal/config"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

func main() {
	userID := flag.String("user", "", "user id (required)")
	name := flag.String("name", "", "display name")
	avatar := flag.String("avatar", "", "avatar url")
	ttl := flag.Duration("ttl", 0, "token lifetime (default TOKEN_TTL_HOURS)")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	lifetime := cfg.TokenTTL()
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewVerifier(cfg.JWTSecret).Issue(domain.User{ID: *userID, Name: *name, Avatar: *avatar}, lifetime)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
}
