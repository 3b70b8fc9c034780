package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with EventStore server",
		Long: `Authenticate with the EventStore server using your client ID.
This will generate a JWT token that can be used for subsequent requests.`,
		RunE: runAuth,
	}
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Authenticating with server %s as client %s...\n", serverURL, clientID)

	if err := client.Authenticate(ctx); err != nil {
		return err
	}

	token := client.GetToken()
	fmt.Fprintf(out, "✅ Authentication successful!\n")
	fmt.Fprintf(out, "Token: %s\n", token)
	fmt.Fprintf(out, "\nYou can now use other commands or save this token for future use:\n")
	fmt.Fprintf(out, "  export %s=\"%s\"\n", tokenEnv, token)
	fmt.Fprintf(out, "  eventstore-cli query --type user.created --start 0 --end 100\n")

	return nil
}
