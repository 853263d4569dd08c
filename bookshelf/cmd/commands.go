package main

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/bookshelf/bookshelf/dialog"
	"github.com/arthur-debert/bookshelf/bookshelf/export"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
)

func (cli *CLI) newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls <table>",
		Aliases: []string{"list"},
		Short:   "List the records of a table",
		Long: heredoc.Doc(`
			List records, one row each. Fields, order and grouping default to
			the table's list settings; every --filter has to match.

			Filters have the form <field><operator><value> with the operators
			=, !=, ~ (pattern, * and % match anything), !~, >, <, >=, <= and
			# (one of a comma separated list). A dotted field such as
			author.name filters on the referenced records. An empty value with
			= matches missing values, with != present ones.

			Examples:
			  bookshelf ls books --fields key,title,author.sortname
			  bookshelf ls books --filter 'published>=1900' --orderby -published
			  bookshelf ls books --filter 'author.nationality=Italian'
			  bookshelf ls books --groupby publisher
			  bookshelf ls persons --filter 'books>1'
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			opts := schema.ListOptions{}
			opts.Fields, _ = cmd.Flags().GetStringSlice("fields")
			opts.OrderBy, _ = cmd.Flags().GetStringSlice("orderby")
			opts.Filters, _ = cmd.Flags().GetStringArray("filter")
			opts.GroupBy, _ = cmd.Flags().GetString("groupby")
			opts.Limit, _ = cmd.Flags().GetInt("limit")

			env, err := cli.env()
			if err != nil {
				return WrapError("open the library", err)
			}
			listing, err := schema.List(env, table, opts)
			if err != nil {
				return WrapError("list "+table, err)
			}
			cli.logger.Info("listed records", "table", table, "rows", len(listing.Rows), "filters", opts.Filters)
			return writeListing(cli.out, cli.format(), listing)
		},
	}
	cmd.Flags().StringSlice("fields", nil, "Fields to show, comma separated")
	cmd.Flags().StringSlice("orderby", nil, "Sort fields; prefix with - for descending")
	cmd.Flags().String("groupby", "", "Group rows by a field")
	cmd.Flags().StringArray("filter", nil, "Filter expression (repeatable)")
	cmd.Flags().Int("limit", 0, "Show at most this many rows")
	return cmd
}

func (cli *CLI) newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <table> <key>",
		Short: "Show one record and what refers to it",
		Long: heredoc.Doc(`
			Show every field of a record, named by key or numeric id, and the
			records of other tables that refer to it.

			Examples:
			  bookshelf show persons umberto-eco
			  bookshelf show books 3 --format yaml
		`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.env()
			if err != nil {
				return WrapError("open the library", err)
			}
			detail, err := schema.Show(env, args[0], args[1], schema.Titles{Env: env})
			if err != nil {
				return WrapError(fmt.Sprintf("show %s %s", args[0], args[1]), err)
			}
			return writeDetail(cli.out, cli.format(), env, detail)
		},
	}
}

func (cli *CLI) newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <table>",
		Short: "Create a record interactively",
		Long: heredoc.Doc(`
			Ask for every field of a new record, then for its key, and open the
			record editor. Type ? in any editor for its commands.
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.env()
			if err != nil {
				return WrapError("open the library", err)
			}
			c := cli.dialogContext(env)
			defer c.Flush()
			rec, err := dialog.Create(c, args[0], nil)
			if err != nil {
				return WrapError("add to "+args[0], err)
			}
			if rec != nil {
				cli.logger.Info("record created", "table", args[0], "key", rec.Key(), "id", rec.ID())
			}
			return nil
		},
	}
}

func (cli *CLI) newEditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <table> <key>",
		Short: "Edit a record interactively",
		Long: heredoc.Doc(`
			Open the record editor on a record named by key or numeric id.
			Field 0 is the key. Type ? for the editor commands.
		`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.env()
			if err != nil {
				return WrapError("open the library", err)
			}
			c := cli.dialogContext(env)
			defer c.Flush()
			if _, err := dialog.Edit(c, args[0], args[1]); err != nil {
				return WrapError(fmt.Sprintf("edit %s %s", args[0], args[1]), err)
			}
			return nil
		},
	}
}

func (cli *CLI) newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <table> [key...]",
		Short: "Delete records",
		Long: heredoc.Doc(`
			Delete records named by key or id, or selected with --filter.
			Nothing is deleted when one of the names is unknown.

			Records that are still referenced are kept unless one of
			--derefer-records (remove the references) or --delete-records
			(delete the referring records as well) is given.

			Examples:
			  bookshelf rm books zola-germinal-1885
			  bookshelf rm persons william-weaver --derefer-records
			  bookshelf rm books --filter 'published<1900' --yes
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, inputs := args[0], args[1:]
			filters, _ := cmd.Flags().GetStringArray("filter")
			opts := dialog.DeleteOptions{}
			opts.NoSummary, _ = cmd.Flags().GetBool("no-summary")
			opts.AssumeYes, _ = cmd.Flags().GetBool("yes")
			if cascade, _ := cmd.Flags().GetBool("delete-records"); cascade {
				opts.Policy = dialog.PolicyCascade
			}
			if deref, _ := cmd.Flags().GetBool("derefer-records"); deref {
				opts.Policy = dialog.PolicyDereference
			}

			env, err := cli.env()
			if err != nil {
				return WrapError("open the library", err)
			}
			if len(filters) > 0 {
				listing, err := schema.List(env, table, schema.ListOptions{Fields: []string{"key"}, Filters: filters})
				if err != nil {
					return WrapError("select records of "+table, err)
				}
				for _, r := range listing.Rows {
					inputs = append(inputs, r.Key())
				}
			}
			if len(inputs) == 0 {
				fmt.Fprintln(cli.out, "No records selected.")
				return nil
			}

			c := cli.dialogContext(env)
			n, err := dialog.Delete(c, table, inputs, opts)
			if err != nil {
				return WrapError("delete from "+table, err)
			}
			cli.logger.Info("records deleted", "table", table, "count", n, "policy", opts.Policy)
			return nil
		},
	}
	cmd.Flags().StringArray("filter", nil, "Select records with a filter expression (repeatable)")
	cmd.Flags().Bool("delete-records", false, "Also delete the records referring to the deleted ones")
	cmd.Flags().Bool("derefer-records", false, "Remove references to the deleted records")
	cmd.Flags().Bool("no-summary", false, "Do not list the records before asking")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	cmd.MarkFlagsMutuallyExclusive("delete-records", "derefer-records")
	return cmd
}

func (cli *CLI) newDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "desc [table]",
		Short: "Describe a table, or list the tables",
		Long: heredoc.Doc(`
			Without arguments, list the tables. With a table, list its fields,
			query fields, filters with their operators and its references.
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cli.env()
			if err != nil {
				return WrapError("open the library", err)
			}
			if len(args) == 0 {
				return writeTables(cli.out, cli.format(), env.Registry.Names())
			}
			desc, err := schema.Describe(env, args[0])
			if err != nil {
				return WrapError("describe "+args[0], err)
			}
			return writeDescription(cli.out, cli.format(), desc)
		},
	}
}

func (cli *CLI) newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file.sqlite>",
		Short: "Copy the library into a SQLite database",
		Long: heredoc.Doc(`
			Write every table, or those given with --table, into a SQLite
			database. Each table gets id, key, one text column per field as
			shown by show, and the raw JSON document. Existing tables of the
			same name are replaced.
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, _ := cmd.Flags().GetStringSlice("table")
			env, err := cli.env()
			if err != nil {
				return WrapError("open the library", err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			counts, err := export.New(env, cli.logger).ToSQLite(ctx, args[0], tables...)
			if err != nil {
				return WrapError("export to "+args[0], err)
			}
			for _, tc := range counts {
				fmt.Fprintf(cli.out, "%-12s %d rows\n", tc.Table, tc.Rows)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("table", nil, "Tables to export (default all)")
	return cmd
}
