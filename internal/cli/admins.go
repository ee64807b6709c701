package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var adminCaller string

var grantAdminCmd = &cobra.Command{
	Use:   "grant-admin <address>",
	Short: "Add an address to the admin set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeAdmin(cmd, args[0], true)
	},
}

var revokeAdminCmd = &cobra.Command{
	Use:   "revoke-admin <address>",
	Short: "Remove an address from the admin set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeAdmin(cmd, args[0], false)
	},
}

func changeAdmin(cmd *cobra.Command, rawWho string, grant bool) error {
	caller, err := parseAddress("caller", adminCaller)
	if err != nil {
		return err
	}
	who, err := parseAddress("address", rawWho)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd.Context(), getEnv())
	if err != nil {
		return err
	}
	defer rt.Close()

	admins := rt.services.Admins
	if grant {
		err = admins.GrantAdmin(cmd.Context(), caller, who)
	} else {
		err = admins.RevokeAdmin(cmd.Context(), caller, who)
	}
	if err != nil {
		return err
	}

	current, err := admins.ListAdmins(cmd.Context())
	if err != nil {
		return err
	}
	for _, addr := range current {
		fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{grantAdminCmd, revokeAdminCmd} {
		c.Flags().StringVar(&adminCaller, "caller", "", "Admin address making the change")
		_ = c.MarkFlagRequired("caller")
	}
}
