// Command token signs a bearer token for local development. Production
// tokens come from the organization's identity provider.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"treasury/internal/auth"
	"treasury/internal/config"
)

func main() {
	userID := flag.String("user", "", "user id")
	orgID := flag.String("org", "", "organization id")
	roles := flag.String("roles", "", "comma-separated roles, e.g. treasurer,director")
	creatorType := flag.String("creator-type", "standard", "standard or privileged")
	flag.Parse()

	if *userID == "" || *orgID == "" {
		flag.Usage()
		os.Exit(2)
	}
	cfg := config.Load()
	var roleList []string
	for _, role := range strings.Split(*roles, ",") {
		if trimmed := strings.TrimSpace(role); trimmed != "" {
			roleList = append(roleList, trimmed)
		}
	}
	token, err := auth.GenerateToken(cfg.JWTSecret, auth.Identity{
		UserID:         *userID,
		OrganizationID: *orgID,
		Roles:          roleList,
		CreatorType:    *creatorType,
	}, cfg.TokenTTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
