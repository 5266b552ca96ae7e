package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/barekit/rihlat/internal/app"
	"github.com/barekit/rihlat/pkg/agent"
	"github.com/barekit/rihlat/pkg/sqlagent"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (c *cli) askCmd() *cobra.Command {
	var (
		limit     int
		showTools bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the assistant a transit question",
		Long: `Ask runs one conversation turn: the model may query the GTFS databases, geocode places,
plan a transit route or read the clock before answering.

Without a question, ask reads one question per line from stdin. Each line is answered on its own;
earlier questions and answers are not sent back to the model.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if len(args) > 0 {
					return c.askOnce(ctx, a, strings.Join(args, " "), limit, showTools)
				}
				return c.chat(ctx, a, limit, showTools)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Result-count limit for transit queries (default from --top-k)")
	cmd.Flags().BoolVar(&showTools, "show-tools", false, "Print every tool result")
	return cmd
}

func (c *cli) askOnce(ctx context.Context, a *app.App, question string, limit int, showTools bool) error {
	var resp *agent.Response
	err := c.spin("Thinking", func() error {
		var err error
		resp, err = a.Agent.Run(ctx, agent.Request{Text: question, Limit: limit})
		return err
	})
	if err != nil {
		return err
	}
	if c.asJSON {
		return c.printJSON(resp)
	}

	if showTools {
		for _, out := range resp.Tools {
			if out.Error != nil {
				pterm.Warning.Printfln("%s: %s", out.Tool, out.Error.Message)
				continue
			}
			pterm.Info.Printfln("%s: %s", out.Tool, summarize(out.Result))
		}
	}
	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Rihlat")).
		WithTopPadding(1).WithBottomPadding(1).WithLeftPadding(1).WithRightPadding(1).
		Println(resp.Answer)
	return nil
}

func (c *cli) chat(ctx context.Context, a *app.App, limit int, showTools bool) error {
	sc := bufio.NewScanner(os.Stdin)
	for {
		if !c.asJSON {
			pterm.Print(pterm.FgGreen.Sprint("you> "))
		}
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := c.askOnce(ctx, a, line, limit, showTools); err != nil {
			renderError(os.Stderr, err)
		}
	}
}

func summarize(v any) string {
	switch r := v.(type) {
	case sqlagent.Result:
		return fmt.Sprintf("%d rows from %s", len(r.Rows), r.Database)
	case fmt.Stringer:
		return r.String()
	case string:
		return r
	default:
		return fmt.Sprintf("%v", r)
	}
}
