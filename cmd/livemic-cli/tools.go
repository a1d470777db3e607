package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"livemic/internal/domain"
	"livemic/internal/logging"
	"livemic/internal/tools"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List or invoke the tools offered to the model",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print tool declarations as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				registry, err := builtinRegistry()
				if err != nil {
					return err
				}
				return writeJSON(cmd, registry.Declarations())
			},
		},
		&cobra.Command{
			Use:   "call NAME [JSON-ARGS]",
			Short: "Dispatch one tool call locally and print the result",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  runToolCall,
		},
	)
	return cmd
}

func runToolCall(cmd *cobra.Command, args []string) error {
	call := domain.ToolCall{ID: uuid.NewString(), Name: args[0]}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &call.Args); err != nil {
			return fmt.Errorf("tool arguments must be a JSON object: %w", err)
		}
	}

	registry, err := builtinRegistry()
	if err != nil {
		return err
	}
	return writeJSON(cmd, registry.Dispatch(cmd.Context(), call))
}

func builtinRegistry() (*tools.Registry, error) {
	registry := tools.NewRegistry(logging.For("tools"), nil)
	if err := tools.RegisterBuiltins(registry, tools.NewDeviceTable()); err != nil {
		return nil, err
	}
	return registry, nil
}

func writeJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
