package main

import (
	"context"
	"os"
	"strings"

	"github.com/barekit/rihlat/internal/app"
	"github.com/barekit/rihlat/pkg/errs"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (c *cli) transcribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe [file.wav]",
		Short: "Transcribe a WAV recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wav, err := os.ReadFile(args[0])
			if err != nil {
				return errs.Wrap(errs.KindParse, "transcribe", err)
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var text string
				err := c.spin("Transcribing", func() error {
					var err error
					text, err = a.Transcriber.Transcribe(ctx, wav)
					return err
				})
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(map[string]string{"transcript": text})
				}
				pterm.Println(text)
				return nil
			})
		},
	}
}

func (c *cli) speakCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Synthesize speech and write it to an MP3 file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var audio []byte
				err := c.spin("Synthesizing", func() error {
					var err error
					audio, err = a.Synthesizer.Synthesize(ctx, text)
					return err
				})
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, audio, 0o644); err != nil {
					return errs.Wrap(errs.KindStorageUnavailable, "speak", err)
				}
				if c.asJSON {
					return c.printJSON(map[string]any{"file": out, "bytes": len(audio)})
				}
				pterm.Success.Printfln("Wrote %d bytes to %s", len(audio), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "output.mp3", "Output file")
	return cmd
}
