package config

import (
	"flag"
	"os"
)

const defaultAPIEndpoint = "http://localhost:8080"

// parses CLI flags for a storefront client subcommand (os.Args[2:])
func ParseClientFlags(command string) Flags {
	fs := flag.NewFlagSet(command, flag.ExitOnError)

	api := fs.String("api", apiFromEnv(), "storefront API base URL")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "display name (signup only)")

	var args []string
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	fs.Parse(args) //nolint:errcheck,gosec // G104: ExitOnError flag set handles errors

	return Flags{API: *api, Email: *email, Password: *password, Name: *name}
}

func apiFromEnv() string {
	if endpoint := os.Getenv("STOREFRONT_API_ENDPOINT"); endpoint != "" {
		return endpoint
	}

	return defaultAPIEndpoint
}
