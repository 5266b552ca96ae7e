package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/barekit/rihlat/internal/app"
	"github.com/barekit/rihlat/pkg/schema"
	"github.com/barekit/rihlat/pkg/sqlagent"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (c *cli) sqlCmd() *cobra.Command {
	var (
		limit int
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "sql [question]",
		Short: "Generate and run a SQL query over the transit databases",
		Long: `Sql turns a question into a query with the model and runs it.

With --raw the argument is run as is. Use "database|query" when more than one database is configured.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var res sqlagent.Result
				err := c.spin("Querying", func() error {
					if raw {
						q, err := sqlagent.ParseQuery(input, a.DBs.Names())
						if err != nil {
							return err
						}
						res = a.SQL.Execute(ctx, q)
					} else {
						res = a.SQL.Ask(ctx, input, limit)
					}
					if res.Error != nil {
						return res.Error
					}
					return nil
				})
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(res)
				}
				return printResult(res)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Result-count limit placed in the prompt (default from --top-k)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Run the argument as SQL instead of generating it")
	return cmd
}

func printResult(res sqlagent.Result) error {
	pterm.Info.Printfln("%s|%s", res.Database, res.Query)
	if len(res.Rows) == 0 {
		pterm.Println("(no rows)")
		return nil
	}
	data := pterm.TableData{res.Columns}
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		data = append(data, cells)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func (c *cli) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema text the query generator sees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if c.asJSON {
					var descs []*schema.Descriptor
					for _, name := range a.DBs.Names() {
						h, _ := a.DBs.Get(name)
						d, err := a.SQL.Schemas.Get(ctx, name, h.DB)
						if err != nil {
							return err
						}
						descs = append(descs, d)
					}
					return c.printJSON(descs)
				}
				text, err := a.SQL.Schema(ctx)
				if err != nil {
					return err
				}
				pterm.Println(text)
				return nil
			})
		},
	}
}
