package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unifiedui/chat-gateway/internal/pkg/encryption"
	commands "github.com/unifiedui/chat-gateway/internal/services/handlers"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new SECRETS_ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := encryption.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newHandlersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handlers",
		Short: "Inspect file handlers",
	}
	cmd.AddCommand(newHandlersValidateCmd())
	return cmd
}

func newHandlersValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir>",
		Short: "Check every handler document in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}
			src, err := commands.NewFileSource(args[0])
			if err != nil {
				return err
			}
			names, err := src.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			invalid := 0
			for _, name := range names {
				doc, _, err := src.Read(name)
				if err == nil {
					err = doc.Validate()
				}
				if err != nil {
					invalid++
					fmt.Fprintf(out, "FAIL %s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s\n", doc.Name)
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d handler(s) invalid", invalid, len(names))
			}
			fmt.Fprintf(out, "%d handler(s) valid\n", len(names))
			return nil
		},
	}
}
