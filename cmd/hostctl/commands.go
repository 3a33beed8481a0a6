package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yanizio/hostmap/internal/config"
)

const defaultServer = "http://localhost:8080"

type rootFlags struct {
	server string
	token  string
}

func newRootCmd() *cobra.Command {
	rf := new(rootFlags)
	root := &cobra.Command{
		Use:           "hostctl",
		Short:         "Inspect and steer a running hostmap.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	def := os.Getenv("HOSTMAP_SERVER")
	if def == "" {
		def = defaultServer
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&rf.server, "server", "s", def, "hostmap base URL")
	pf.StringVarP(&rf.token, "token", "t", os.Getenv("HOSTMAP_TOKEN"), "API bearer token")

	root.AddCommand(
		newResolveCmd(rf),
		newDecideCmd(rf),
		newEvictCmd(rf),
		newConfigCmd(),
	)
	return root
}

func newResolveCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve HOST [PATH]",
		Short: "Show the tenant a host and path bind to.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"host": {args[0]}}
			if len(args) == 2 {
				q.Set("path", args[1])
			}
			c := newClient(rf)
			return c.getJSON(cmd.Context(), "/v1/resolve", q, cmd.OutOrStdout(), 404)
		},
	}
}

type decideFlags struct {
	method string
	admin  bool
	auth   bool
	bot    bool
}

func newDecideCmd(rf *rootFlags) *cobra.Command {
	df := new(decideFlags)
	cmd := &cobra.Command{
		Use:   "decide URL",
		Short: "Show the redirect decision for a request URL.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := decideQuery(args[0], df)
			if err != nil {
				return err
			}
			c := newClient(rf)
			return c.getJSON(cmd.Context(), "/v1/decide", q, cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&df.method, "method", "X", "GET", "request method")
	fs.BoolVar(&df.admin, "admin", false, "treat as an administrative request")
	fs.BoolVar(&df.auth, "auth", false, "treat as an authenticated user")
	fs.BoolVar(&df.bot, "bot", false, "treat as a crawler")
	return cmd
}

// decideQuery splits a full request URL into /v1/decide parameters.
func decideQuery(raw string, df *decideFlags) (url.Values, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("decide: %q has no host", raw)
	}
	q := url.Values{
		"method": {df.method},
		"host":   {u.Host},
		"uri":    {u.RequestURI()},
		"ssl":    {strconv.FormatBool(u.Scheme == "https")},
	}
	if df.admin {
		q.Set("admin", "true")
	}
	if df.auth {
		q.Set("auth", "true")
	}
	if df.bot {
		q.Set("bot", "true")
	}
	return q, nil
}

type evictFlags struct {
	name   string
	id     uint64
	tenant uint64
	domain string
}

func newEvictCmd(rf *rootFlags) *cobra.Command {
	ef := new(evictFlags)
	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Drop cached domain and tenant entries.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ef.name == "" && ef.id == 0 && ef.tenant == 0 && ef.domain == "" {
				return errors.New("evict: one of --name, --id, --tenant, or --domain is required")
			}
			body := map[string]any{}
			if ef.name != "" {
				body["name"] = ef.name
			}
			if ef.id != 0 {
				body["id"] = ef.id
			}
			if ef.tenant != 0 {
				body["tenant_id"] = ef.tenant
			}
			if ef.domain != "" {
				body["domain"] = ef.domain
			}
			c := newClient(rf)
			if err := c.postJSON(cmd.Context(), "/v1/evict", body); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "evicted")
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&ef.name, "name", "", "domain name")
	fs.Uint64Var(&ef.id, "id", 0, "domain record id")
	fs.Uint64Var(&ef.tenant, "tenant", 0, "tenant id (primary domain and site binding)")
	fs.StringVar(&ef.domain, "domain", "", "tenant true domain (host lookup index)")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Load, validate, and print the effective configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			masked := *cfg
			if masked.Database.GlobalPassword != "" {
				masked.Database.GlobalPassword = "********"
			}
			if masked.Cache.Redis.Password != "" {
				masked.Cache.Redis.Password = "********"
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(masked)
		},
	}
}
