package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/fleet-engine/factory"
)

const (
	fleetFile    = "fleet.json"
	invoicesFile = "invoices.json"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <fleet.json> [invoices.json]",
		Short: "Replace the stored datasets with JSON documents",
		Long: `Import decodes a fleet document and, optionally, an invoices
document, then replaces what the database holds. Malformed records are
skipped and listed; the rest of the document still loads.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.importFiles(cmd, args)
		},
	}
}

func (a *app) importFiles(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	f := factory.NewDatasetFactory(a.log.Named("factory"))
	out := cmd.OutOrStdout()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	data, skipped, err := f.ParseFleet(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if err := st.SaveFleet(ctx, data); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d vehicles, %d drivers, %d trips, %d fuel expenses\n",
		args[0], len(data.Vehicles), len(data.Drivers), len(data.Trips), len(data.Fuels))
	printSkipped(cmd, skipped)
	a.log.Info("fleet imported", zap.String("file", args[0]), zap.Int("skipped", len(skipped)))

	if len(args) < 2 {
		return nil
	}

	raw, err = os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}
	book, skipped, err := f.ParseInvoices(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[1], err)
	}
	if err := st.SaveInvoices(ctx, book); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d invoices, %d customers\n", args[1], len(book.Invoices), len(book.Customers))
	printSkipped(cmd, skipped)
	a.log.Info("invoices imported", zap.String("file", args[1]), zap.Int("skipped", len(skipped)))
	return nil
}

func printSkipped(cmd *cobra.Command, skipped []factory.Skipped) {
	for _, s := range skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "  skipped %s\n", s)
	}
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored datasets as fleet.json and invoices.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return a.exportFiles(cmd, dir)
		},
	}
	cmd.Flags().String("dir", ".", "Output directory")
	return cmd
}

func (a *app) exportFiles(cmd *cobra.Command, dir string) error {
	ctx := cmd.Context()
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f := factory.NewDatasetFactory(a.log.Named("factory"))

	data, err := st.LoadFleet(ctx)
	if err != nil {
		return err
	}
	raw, err := f.EncodeFleet(data)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, fleetFile), raw); err != nil {
		return err
	}

	book, err := st.LoadInvoices(ctx)
	if err != nil {
		return err
	}
	raw, err = f.EncodeInvoices(book)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, invoicesFile), raw); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s to %s\n", fleetFile, invoicesFile, dir)
	return nil
}

func writeFile(path string, raw []byte) error {
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
