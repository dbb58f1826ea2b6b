package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/gospool/internal/observability"
	"github.com/3leaps/gospool/pkg/printer"
)

var printersCmd = &cobra.Command{
	Use:   "printers",
	Short: "Inspect the printer catalog",
	Long: `Inspect the printer catalog configured by printers.catalog.

The default printer is the active printer with the lowest priority number.

Examples:
  gospool printers list
  gospool printers default --json`,
}

var printersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog printers",
	RunE:  runPrintersList,
}

var printersDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Show the default printer",
	RunE:  runPrintersDefault,
}

func init() {
	rootCmd.AddCommand(printersCmd)
	printersCmd.AddCommand(printersListCmd)
	printersCmd.AddCommand(printersDefaultCmd)

	printersListCmd.Flags().Bool("json", false, "Output as JSON")
	printersDefaultCmd.Flags().Bool("json", false, "Output as JSON")
}

func loadCatalogRepository() (*printer.MemoryRepository, error) {
	eng := newEngine(appConfig, observability.CLILogger)
	if err := eng.loadPrinters(); err != nil {
		return nil, exitError(foundry.ExitFileReadError, "Cannot load printers", err)
	}
	return eng.printers, nil
}

func runPrintersList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	repo, err := loadCatalogRepository()
	if err != nil {
		return err
	}
	printers, err := repo.FindAll(commandContext(cmd))
	if err != nil {
		return err
	}
	if jsonOutput {
		return encodeJSON(os.Stdout, printers)
	}
	def, _ := printer.DefaultOf(printers)
	return writePrinterTable(os.Stdout, printers, def.ID)
}

func runPrintersDefault(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	repo, err := loadCatalogRepository()
	if err != nil {
		return err
	}
	p, ok, err := repo.FindDefault(commandContext(cmd))
	if err != nil {
		return err
	}
	if !ok {
		return exitError(foundry.ExitFileNotFound, "No default printer", printer.ErrNotFound)
	}
	if jsonOutput {
		return encodeJSON(os.Stdout, p)
	}
	return writePrinterTable(os.Stdout, []printer.Printer{p}, p.ID)
}

func writePrinterTable(w io.Writer, printers []printer.Printer, defaultID int64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSPOOL NAME\tPRIORITY\tONE-SIDED\tTWO-SIDED\tSTATUS")
	for _, p := range printers {
		status := "active"
		if p.Inactive {
			status = "inactive"
		}
		if p.ID == defaultID && p.Active() {
			status = "default"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			p.ID, p.Name, dash(p.SpoolName), p.Priority,
			strconv.FormatFloat(p.PriceOneSided, 'f', 2, 64),
			strconv.FormatFloat(p.PriceTwoSided, 'f', 2, 64),
			status)
	}
	return tw.Flush()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

