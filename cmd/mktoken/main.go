// Command mktoken mints a bearer token for an owner id. Development tooling.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmynk/cardscan/internal/auth"
	"github.com/mmynk/cardscan/internal/config"
)

func main() {
	owner := flag.String("owner", "", "owner id the token authenticates")
	device := flag.String("device", "", "optional device name recorded in the token")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	if err := config.LoadEnv(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" || *owner == "" {
		fmt.Fprintln(os.Stderr, "usage: JWT_SECRET=... mktoken -owner <id> [-device name] [-ttl 720h]")
		os.Exit(2)
	}

	token, err := auth.NewJWTManager(secret, *ttl).Generate(*owner, *device)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
