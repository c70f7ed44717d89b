// storefrontctl drives a running storefront session service from the shell.
// Each command performs a single operation, making it composable for scripts.
//
// Examples:
//
//	SID=$(storefrontctl session -q)
//	storefrontctl add cart --session $SID --id 60 --name "Chain Kit" --price 3499 --qty 2
//	storefrontctl login --session $SID --token demo-token
//	storefrontctl list cart --session $SID
//	storefrontctl products --brand royal-enfield --category mirrors
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	serverURL     string
	sessionID     string
	clientVersion string
	quiet         bool
	noColor       bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "storefrontctl",
	Short: "storefrontctl — storefront session service client",
	Long:  "Inspect and change wishlists, carts and catalog listings of a storefront session.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" {
			disableColors()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serverURL, "server", envOr("STOREFRONT_URL", "http://localhost:8080"), "storefront service base URL")
	pf.StringVar(&sessionID, "session", os.Getenv("STOREFRONT_SESSION"), "session id (minted by the service when empty)")
	pf.StringVar(&clientVersion, "client", "", "storefront client version sent in the session header")
	pf.BoolVarP(&quiet, "quiet", "q", false, "quiet mode - only print ids")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "show full request/response")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(quantityCmd)
	rootCmd.AddCommand(clearCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
