package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/overlax/overlax/internal/clientconfig"
)

func newLoginCmd(a *app) *cobra.Command {
	var apiURL, uid, token, timezone, poll string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the backend URL and your Firebase credentials",
		Long: `Store the backend URL, your user id and a Firebase ID token in the config file.

The token is sent as a bearer token on every request. Obtain it from the web
app after signing in with Google.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid = strings.TrimSpace(uid)
			token = strings.TrimSpace(token)
			if uid == "" || token == "" {
				return errors.New("both --uid and --token are required")
			}

			cfg := *a.cfg
			if apiURL != "" {
				cfg.APIURL = strings.TrimRight(apiURL, "/")
			}
			cfg.UID = uid
			cfg.Token = token
			if cmd.Flags().Changed("timezone") {
				cfg.Timezone = timezone
			}
			if cmd.Flags().Changed("poll") {
				cfg.PollInterval = poll
			}

			if err := clientconfig.Save(a.configPath, &cfg); err != nil {
				return err
			}
			a.cfg = &cfg

			fmt.Fprintf(a.out, "Logged in as %s on %s\n", cfg.UID, cfg.APIURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", "", "backend URL (default "+clientconfig.DefaultAPIURL+")")
	cmd.Flags().StringVar(&uid, "uid", "", "Firebase user id")
	cmd.Flags().StringVar(&token, "token", "", "Firebase ID token")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone for dates, e.g. Asia/Kolkata")
	cmd.Flags().StringVar(&poll, "poll", "", "task refresh interval in chat, e.g. 30s")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			cfg.UID = ""
			cfg.Token = ""
			if err := clientconfig.Save(a.configPath, &cfg); err != nil {
				return err
			}
			a.cfg = &cfg
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			profile, err := a.backend().Profile(ctx)
			if err != nil {
				return err
			}

			name := profile.Name
			if name == "" {
				name = profile.UID
			}
			fmt.Fprintf(a.out, "%s <%s>\n", name, profile.Email)
			fmt.Fprintf(a.out, "uid:      %s\n", profile.UID)
			fmt.Fprintf(a.out, "backend:  %s\n", a.cfg.APIURL)
			fmt.Fprintf(a.out, "timezone: %s\n", a.cfg.Location())
			return nil
		},
	}
}
