package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storefront-sync/internal/gateway"
	"storefront-sync/internal/model"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check service status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := doRequest("GET", "/health", nil)
		if err != nil {
			return err
		}
		printSuccess("service %v", resp.body["status"])
		return nil
	},
}

var productQuery struct {
	search   string
	brand    string
	model    string
	category []string
	priceMin float64
	priceMax float64
	inStock  bool
	page     int
	limit    int
	listing  bool
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Resolve a catalog filter query",
	Long: "Resolve a catalog filter query. With --listing the query runs against " +
		"the session listing, so a newer concurrent query supersedes it.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := model.FilterQuery{
			Search:   productQuery.search,
			Brand:    productQuery.brand,
			Model:    productQuery.model,
			Category: productQuery.category,
			Page:     productQuery.page,
			Limit:    productQuery.limit,
		}
		if cmd.Flags().Changed("price-min") {
			q.PriceMin = &productQuery.priceMin
		}
		if cmd.Flags().Changed("price-max") {
			q.PriceMax = &productQuery.priceMax
		}
		if cmd.Flags().Changed("in-stock") {
			q.InStock = &productQuery.inStock
		}

		path := "/products"
		if productQuery.listing {
			path = "/session/listing"
		}
		resp, err := doRequest("GET", path+"?"+gateway.EncodeQuery(q.Normalize()), nil)
		if err != nil {
			return err
		}
		printListing(resp.body)
		return nil
	},
}

func init() {
	f := productsCmd.Flags()
	f.StringVar(&productQuery.search, "search", "", "free text search")
	f.StringVar(&productQuery.brand, "brand", "", "brand slug or name")
	f.StringVar(&productQuery.model, "model", "", "motorcycle model")
	f.StringSliceVar(&productQuery.category, "category", nil, "category slugs (repeatable or comma separated)")
	f.Float64Var(&productQuery.priceMin, "price-min", 0, "minimum price")
	f.Float64Var(&productQuery.priceMax, "price-max", 0, "maximum price")
	f.BoolVar(&productQuery.inStock, "in-stock", false, "only products in stock")
	f.IntVar(&productQuery.page, "page", 1, "page number")
	f.IntVar(&productQuery.limit, "limit", model.DefaultLimit, "page size")
	f.BoolVar(&productQuery.listing, "listing", false, "resolve through the session listing")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show (or start) a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := doRequest("GET", "/session", nil)
		if err != nil {
			return err
		}
		if quiet {
			fmt.Println(resp.body["id"])
			return nil
		}
		printSession(resp.body)
		return nil
	},
}

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign the session in and merge its guest collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginToken == "" {
			return fmt.Errorf("--token is required")
		}
		resp, err := doRequest("POST", "/session/login", map[string]string{"token": loginToken})
		if err != nil {
			return err
		}
		if already, _ := resp.body["alreadyAuthenticated"].(bool); already {
			printInfo("session was already signed in")
		}
		if merged, ok := resp.body["merged"].([]interface{}); ok {
			for _, m := range merged {
				entry, _ := m.(map[string]interface{})
				printInfo("merged %v: %v of %v guest items", entry["kind"], entry["added"], entry["attempted"])
				if failed, ok := entry["failed"].([]interface{}); ok && len(failed) > 0 {
					printWarning("not merged: %s", joinAny(failed))
				}
			}
		}
		if s, ok := resp.body["session"].(map[string]interface{}); ok {
			printSession(s)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "customer token (required)")
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Return the session to guest mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := doRequest("POST", "/session/logout", nil)
		if err != nil {
			return err
		}
		printSession(resp.body)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:       "list <wishlist|cart>",
	Short:     "List the items of a collection",
	Args:      kindArg,
	ValidArgs: kindNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := doRequest("GET", "/session/"+args[0], nil)
		if err != nil {
			return err
		}
		printCollection(resp.body)
		return nil
	},
}

var (
	itemFlags model.CollectionItem
	waitFlag  bool
)

var addCmd = &cobra.Command{
	Use:       "add <wishlist|cart>",
	Short:     "Add an item to a collection",
	Args:      kindArg,
	ValidArgs: kindNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		if itemFlags.ID == "" {
			return fmt.Errorf("--id is required")
		}
		return mutate("POST", "/session/"+args[0]+"/items", itemFlags)
	},
}

func init() {
	f := addCmd.Flags()
	f.StringVar(&itemFlags.ID, "id", "", "product id (required)")
	f.StringVar(&itemFlags.Name, "name", "", "display name")
	f.Float64Var(&itemFlags.Price, "price", 0, "unit price")
	f.StringVar(&itemFlags.SKU, "sku", "", "sku")
	f.StringVar(&itemFlags.Brand, "brand", "", "brand name")
	f.IntVar(&itemFlags.Quantity, "qty", 0, "quantity (cart)")

	for _, c := range []*cobra.Command{addCmd, removeCmd, quantityCmd, clearCmd} {
		c.Flags().BoolVar(&waitFlag, "wait", false, "wait for the server to confirm the change")
	}
}

var removeCmd = &cobra.Command{
	Use:   "remove <wishlist|cart> <id>",
	Short: "Remove an item from a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := model.ParseKind(args[0]); err != nil {
			return err
		}
		return mutate("DELETE", "/session/"+args[0]+"/items/"+url.PathEscape(args[1]), nil)
	},
}

var quantityCmd = &cobra.Command{
	Use:   "qty <id> <quantity>",
	Short: "Set the quantity of a cart line (0 removes it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity must be a number: %w", err)
		}
		return mutate("PUT", "/session/cart/items/"+url.PathEscape(args[0]), map[string]int{"quantity": n})
	},
}

var clearCmd = &cobra.Command{
	Use:       "clear <wishlist|cart>",
	Short:     "Empty a collection",
	Args:      kindArg,
	ValidArgs: kindNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate("DELETE", "/session/"+args[0], nil)
	},
}

// mutate sends a collection change and prints the resulting collection.
// A rolled back change is reported as an error after printing.
func mutate(method, path string, body interface{}) error {
	if waitFlag {
		path += "?wait=true"
	}
	resp, err := doRequest(method, path, body)
	if err != nil && resp == nil {
		return err
	}
	printCollection(resp.body)
	if err != nil {
		return err
	}
	if m, ok := resp.body["mutation"].(map[string]interface{}); ok {
		printSuccess("%v %v", m["op"], m["state"])
	}
	return nil
}

func kindArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	_, err := model.ParseKind(args[0])
	return err
}

func kindNames() []string {
	names := make([]string, 0, len(model.Kinds))
	for _, k := range model.Kinds {
		names = append(names, string(k))
	}
	return names
}

func joinAny(v interface{}) string {
	list, ok := v.([]interface{})
	if !ok {
		return fmt.Sprint(v)
	}
	parts := make([]string, 0, len(list))
	for _, p := range list {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ", ")
}
