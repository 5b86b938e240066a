// Package cli wires the cobra command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/ffpilot/internal/app"
	"github.com/doeshing/ffpilot/internal/domain"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	container, err := app.BuildContainer(ctx, opts.Verbose)
	if err != nil {
		return nil, err
	}

	runCmd := newRunCommand(container)

	root := &cobra.Command{
		Use:   "ffpilot",
		Short: "ffpilot - AI-assisted media processing",
		Long:  "ffpilot turns media processing requests into validated ffmpeg invocations, with a deterministic fallback when no model is reachable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			runCmd.SetArgs(args)
			return runCmd.ExecuteContext(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd)
	root.AddCommand(newBudgetCommand(container))
	root.AddCommand(newDoctorCommand(container))
	root.AddCommand(newHistoryCommand(container))
	root.AddCommand(newProbeCommand(container))
	root.AddCommand(newConfigCommand(container))
	root.AddCommand(newVersionCommand())
	return root, nil
}

func newRunCommand(container *app.Container) *cobra.Command {
	var (
		inputs      []string
		output      string
		params      []string
		model       string
		describe    string
		maxDuration time.Duration
		maxBytes    int64
	)

	cmd := &cobra.Command{
		Use:   "run <operation>",
		Short: "Generate, validate, and execute a media command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.ProcessingRequest{
				Operation:   args[0],
				Inputs:      inputs,
				OutputPath:  output,
				Params:      parseParams(params),
				Description: describe,
			}
			if maxDuration > 0 || maxBytes > 0 {
				req.Constraints = &domain.Constraints{
					MaxDuration:    maxDuration,
					MaxOutputBytes: maxBytes,
				}
			}

			container.Pipeline.ModelOverride = model
			result, err := container.Pipeline.Run(cmd.Context(), req)
			renderResult(cmd.OutOrStdout(), result)
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Input file (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Operation parameter key=value (repeatable)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Override model name (default from config)")
	cmd.Flags().StringVar(&describe, "describe", "", "Free-form description of the desired result")
	cmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "Execution time limit for this request")
	cmd.Flags().Int64Var(&maxBytes, "max-output-bytes", 0, "Upper bound on output size")

	return cmd
}

// parseParams converts repeated key=value flags into request parameters.
// A bare key becomes a boolean true.
func parseParams(pairs []string) map[string]interface{} {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			out[pair] = true
			continue
		}
		out[key] = value
	}
	return out
}

func renderResult(out io.Writer, result domain.PipelineResult) {
	if result.Delegated {
		fmt.Fprintf(out, "Delegated to processing engine: %s\n", string(result.DelegatePayload))
		return
	}
	if len(result.Command.Argv) > 0 {
		fmt.Fprintf(out, "Command [%s]: %s\n", result.Command.Provenance, strings.Join(result.Command.Argv, " "))
	}
	if result.Command.Rationale != "" {
		fmt.Fprintf(out, "Rationale: %s\n", result.Command.Rationale)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
	if exec := result.Execution; exec != nil {
		if exec.Success {
			fmt.Fprintf(out, "Done in %s", exec.Duration.Round(time.Millisecond))
			if exec.OutputPath != "" {
				fmt.Fprintf(out, " -> %s", exec.OutputPath)
			}
			fmt.Fprintln(out)
		} else {
			fmt.Fprintf(out, "Failed (%s, exit %d)\n", exec.Exit, exec.ExitCode)
		}
	}
	if result.Registered {
		fmt.Fprintln(out, "Registered with file registry")
	}
}
