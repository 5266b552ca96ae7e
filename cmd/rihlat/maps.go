package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/barekit/rihlat/internal/app"
	"github.com/barekit/rihlat/pkg/geocode"
	"github.com/barekit/rihlat/pkg/routing"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (c *cli) geocodeCmd() *cobra.Command {
	var p geocode.Params
	cmd := &cobra.Command{
		Use:   "geocode [place]",
		Short: "Look up coordinates for a place or address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Query = strings.Join(args, " ")
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var locs []geocode.Location
				err := c.spin("Geocoding", func() error {
					var err error
					locs, err = a.Geocoder.Search(ctx, p)
					return err
				})
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(locs)
				}
				data := pterm.TableData{{"Address", "Lat", "Lon", "Type", "Score"}}
				for _, l := range locs {
					data = append(data, []string{
						l.Address,
						fmt.Sprintf("%.5f", l.Lat),
						fmt.Sprintf("%.5f", l.Lon),
						l.Type,
						fmt.Sprintf("%.2f", l.Score),
					})
				}
				return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			})
		},
	}
	cmd.Flags().IntVar(&p.Limit, "limit", 1, "Maximum number of results")
	cmd.Flags().StringVar(&p.Language, "language", "en-US", "Result language")
	cmd.Flags().StringVar(&p.CountrySet, "country", "AE", "Comma-separated country codes")
	return cmd
}

func (c *cli) routeCmd() *cobra.Command {
	var (
		p        routing.Params
		question bool
	)
	cmd := &cobra.Command{
		Use:   "route [origin] [destination]",
		Short: "Plan a transit route",
		Long: `Route plans a transit trip between two places.

With --question the single argument is a free-form question and the model extracts the waypoints.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var it routing.Itinerary
				err := c.spin("Planning route", func() error {
					var err error
					if question {
						it, err = a.Router.PlanFromQuestion(ctx, a.LLM, strings.Join(args, " "), p)
						return err
					}
					if len(args) != 2 {
						return fmt.Errorf("route needs an origin and a destination, got %d arguments", len(args))
					}
					p.Waypoints = args
					it, err = a.Router.Plan(ctx, p)
					return err
				})
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(it)
				}
				if it.Empty() {
					pterm.Warning.Println("No transit route found.")
					return nil
				}
				pterm.Info.Println(it.String())
				return pterm.DefaultBulletList.WithItems(bullets(it.Instructions)).Render()
			})
		},
	}
	cmd.Flags().BoolVar(&question, "question", false, "Extract origin and destination from a question")
	cmd.Flags().StringVar(&p.Optimize, "optimize", "", "Route optimization (time, timeWithTraffic)")
	cmd.Flags().StringVar(&p.DateTime, "time", "", "Departure time")
	cmd.Flags().StringVar(&p.DistanceUnit, "unit", "", "Distance unit (km, mi)")
	return cmd
}

func bullets(lines []string) []pterm.BulletListItem {
	items := make([]pterm.BulletListItem, len(lines))
	for i, l := range lines {
		items[i] = pterm.BulletListItem{Level: 0, Text: l}
	}
	return items
}
