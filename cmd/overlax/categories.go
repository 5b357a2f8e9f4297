package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/overlax/overlax/internal/models"
)

func newCategoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "List, add or delete categories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			categories, err := a.backend().Categories(ctx, a.cfg.UID)
			if err != nil {
				return err
			}
			if len(categories) == 0 {
				fmt.Fprintln(a.out, "No categories")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tICON\tID")
			for _, c := range categories {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Icon, c.ID)
			}
			return w.Flush()
		},
	}

	var icon string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			name := strings.TrimSpace(strings.Join(args, " "))
			if strings.EqualFold(name, models.UncategorizedName) {
				return fmt.Errorf("%s is reserved", models.UncategorizedName)
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			category, err := a.backend().CreateCategory(ctx, models.Category{UserID: a.cfg.UID, Name: name, Icon: icon})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added category %s (%s)\n", category.Name, category.ID)
			return nil
		},
	}
	add.Flags().StringVar(&icon, "icon", "", "icon shown next to the name")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a category; its tasks move to " + models.UncategorizedName,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if err := a.backend().DeleteCategory(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted category %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, rm)
	return cmd
}
