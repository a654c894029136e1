package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-lti/internal/lti"
	"github.com/mind-engage/mindengage-lti/internal/lti/sqlstore"
)

var consumerCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Manage tool consumers (LMS installations)",
}

var consumerAddCmd = &cobra.Command{
	Use:     "add <name>",
	Short:   "Register a consumer and print its key and secret",
	Example: `  ltid consumer add "Canvas production"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		c, err := sqlstore.New(d).CreateConsumer(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("consumer %s created\n", bold(c.Name))
		fmt.Printf("  oauth_consumer_key: %s\n", bold(c.KeyString()))
		fmt.Printf("  shared secret:      %s\n", bold(c.Secret))
		fmt.Println(color.New(color.Faint).Sprint("the secret is shown in full only once"))
		return nil
	},
}

var consumerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List consumers with masked secrets",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		list, err := sqlstore.New(d).ListConsumers(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			log.Info().Msg("No consumers registered")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Key", "Name", "Secret"})
		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		for _, c := range list {
			t.AppendRow(table.Row{c.Key, bold(c.Name), faint(c.MaskedSecret())})
		}
		s := table.StyleRounded
		s.Format.Header = text.FormatDefault
		t.SetStyle(s)
		t.Render()
		return nil
	},
}

var consumerShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print one consumer including its full secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("consumer key must be numeric: %q", args[0])
		}
		d, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer d.Close()

		c, err := sqlstore.New(d).Consumer(cmd.Context(), key)
		if err != nil {
			if errors.Is(err, lti.ErrNotFound) {
				return fmt.Errorf("no consumer with key %d", key)
			}
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", c.KeyString(), c.Name, c.Secret)
		return nil
	},
}

func init() {
	consumerCmd.AddCommand(consumerAddCmd, consumerListCmd, consumerShowCmd)
	rootCmd.AddCommand(consumerCmd)
}
