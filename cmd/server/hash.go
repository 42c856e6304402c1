package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daap14/signon/internal/password"
)

func hashPasswordCmd() *cobra.Command {
	var (
		salt string
		cost int
	)

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a password hash for a static users file",
		Long: `Hash a password with the configured salt and bcrypt cost.

The password is read from the first argument or, when none is given, from the
first line of standard input. The salt defaults to AUTH_PASSWORD_SALT.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if salt == "" {
				salt = os.Getenv("AUTH_PASSWORD_SALT")
			}
			if salt == "" {
				return errors.New("a salt is required: pass --salt or set AUTH_PASSWORD_SALT")
			}

			pw, err := readPassword(cmd, args)
			if err != nil {
				return err
			}

			hasher, err := password.NewHasher(salt, cost)
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(pw, password.HashOptions{})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&salt, "salt", "", "password salt (default $AUTH_PASSWORD_SALT)")
	cmd.Flags().IntVar(&cost, "cost", password.DefaultCost, "bcrypt cost")

	return cmd
}

func readPassword(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
