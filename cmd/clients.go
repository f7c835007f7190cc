package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"invoicer/internal/clients"
	"invoicer/internal/config"
	"invoicer/internal/logger"
	"invoicer/internal/sheets"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage the client directory",
	Long: `Maintain reusable client billing profiles on the Clients worksheet
of the ledger spreadsheet. Saved profiles can be referenced by name when
generating an invoice.`,
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved client profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		directory, ctx, cancel, err := openDirectory()
		if err != nil {
			return err
		}
		defer cancel()

		profiles, err := directory.List(ctx)
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No clients saved yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCOMPANY\tADDRESS\tPHONE")
		for _, p := range profiles {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Company, p.Address, p.Phone)
		}
		return w.Flush()
	},
}

var clientsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a client profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		directory, ctx, cancel, err := openDirectory()
		if err != nil {
			return err
		}
		defer cancel()

		profile := profileFromFlags(cmd)
		if err := directory.Add(ctx, profile); err != nil {
			return err
		}
		fmt.Printf("Client %q saved.\n", profile.Name)
		return nil
	},
}

var clientsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update a client profile",
	Long: `Update the profile identified by --name. Unset flags keep their
current value; --new-name renames the profile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		directory, ctx, cancel, err := openDirectory()
		if err != nil {
			return err
		}
		defer cancel()

		name, _ := cmd.Flags().GetString("name")
		current, err := directory.Get(ctx, name)
		if err != nil {
			return err
		}

		updated := current
		if newName, _ := cmd.Flags().GetString("new-name"); newName != "" {
			updated.Name = newName
		}
		if cmd.Flags().Changed("company") {
			updated.Company, _ = cmd.Flags().GetString("company")
		}
		if cmd.Flags().Changed("address") {
			updated.Address, _ = cmd.Flags().GetString("address")
		}
		if cmd.Flags().Changed("phone") {
			updated.Phone, _ = cmd.Flags().GetString("phone")
		}

		if err := directory.Update(ctx, name, updated); err != nil {
			return err
		}
		fmt.Printf("Client %q updated.\n", updated.Name)
		return nil
	},
}

var clientsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a client profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		directory, ctx, cancel, err := openDirectory()
		if err != nil {
			return err
		}
		defer cancel()

		name, _ := cmd.Flags().GetString("name")
		if err := directory.Delete(ctx, name); err != nil {
			return err
		}
		fmt.Printf("Client %q deleted.\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clientsCmd)
	clientsCmd.AddCommand(clientsListCmd, clientsAddCmd, clientsUpdateCmd, clientsDeleteCmd)

	clientsAddCmd.Flags().String("name", "", "Client name (directory key)")
	clientsAddCmd.Flags().String("company", "", "Company name")
	clientsAddCmd.Flags().String("address", "", "Address")
	clientsAddCmd.Flags().String("phone", "", "Phone number")
	_ = clientsAddCmd.MarkFlagRequired("name")

	clientsUpdateCmd.Flags().String("name", "", "Client to update")
	clientsUpdateCmd.Flags().String("new-name", "", "New client name")
	clientsUpdateCmd.Flags().String("company", "", "Company name")
	clientsUpdateCmd.Flags().String("address", "", "Address")
	clientsUpdateCmd.Flags().String("phone", "", "Phone number")
	_ = clientsUpdateCmd.MarkFlagRequired("name")

	clientsDeleteCmd.Flags().String("name", "", "Client to delete")
	_ = clientsDeleteCmd.MarkFlagRequired("name")
}

func profileFromFlags(cmd *cobra.Command) clients.Profile {
	name, _ := cmd.Flags().GetString("name")
	company, _ := cmd.Flags().GetString("company")
	address, _ := cmd.Flags().GetString("address")
	phone, _ := cmd.Flags().GetString("phone")
	return clients.Profile{Name: name, Company: company, Address: address, Phone: phone}
}

func openDirectory() (*clients.Directory, context.Context, context.CancelFunc, error) {
	log := logger.WithComponent("clients-cmd")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := signalContext(60*time.Second, log)

	svc, err := sheets.NewService(ctx, cfg.SpreadsheetID)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	directory := clients.NewDirectory(svc, cfg.ClientsSheet)
	if err := directory.Ensure(ctx); err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return directory, ctx, cancel, nil
}
