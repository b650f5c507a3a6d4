package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := Dial(cfg.ServerAddr)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			ok, err := client.Signup(cfg.Username, cfg.Password)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("signup rejected: username %q is taken", cfg.Username)
			}
			fmt.Printf("account %s created\n", cfg.Username)
			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify account credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := Dial(cfg.ServerAddr)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			ok, err := client.Login(cfg.Username, cfg.Password)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("login rejected: bad credentials")
			}
			fmt.Printf("logged in as %s\n", cfg.Username)
			return nil
		},
	}
}

// loggedInClient dials and logs in with the configured credentials.
func loggedInClient() (*Client, error) {
	client, err := Dial(cfg.ServerAddr)
	if err != nil {
		return nil, err
	}

	ok, err := client.Login(cfg.Username, cfg.Password)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if !ok {
		_ = client.Close()
		return nil, fmt.Errorf("login rejected: bad credentials")
	}
	return client, nil
}
