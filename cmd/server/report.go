package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/generic"
	"github.com/warp/fleet-engine/interest"
)

// =============================================================================
// SUMMARY
// =============================================================================

func newSummaryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print revenue, costs and net result for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			vehicle, _ := cmd.Flags().GetInt("vehicle")
			return a.summary(cmd, from, to, vehicle)
		},
	}
	cmd.Flags().String("from", "", "First day (YYYY-MM-DD or DD/MM/YYYY); open when empty")
	cmd.Flags().String("to", "", "Last day; open when empty")
	cmd.Flags().Int("vehicle", 0, "Vehicle id; 0 for the whole fleet")
	return cmd
}

func (a *app) summary(cmd *cobra.Command, from, to string, vehicle int) error {
	bounds, err := boundsFromFlags(from, to)
	if err != nil {
		return err
	}
	q := fleet.Query{Bounds: bounds, Today: generic.Today()}
	if vehicle > 0 {
		id := fleet.VehicleID(vehicle)
		q.Vehicle = &id
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := st.LoadFleet(cmd.Context())
	if err != nil {
		return err
	}
	if q.Vehicle != nil && !hasVehicle(data, *q.Vehicle) {
		return &generic.NotFoundError{Kind: "vehicle", ID: q.Vehicle.String()}
	}

	writeSummary(cmd.OutOrStdout(), fleet.Summarize(data, q))
	return nil
}

func hasVehicle(f fleet.Fleet, id fleet.VehicleID) bool {
	for _, v := range f.Vehicles {
		if v.ID == id {
			return true
		}
	}
	return false
}

func boundsFromFlags(from, to string) (generic.Bounds, error) {
	var b generic.Bounds
	if from != "" {
		d, err := generic.ParseDate(from)
		if err != nil {
			return b, &generic.FieldError{Field: "from", Value: from, Err: err}
		}
		b.From = &d
	}
	if to != "" {
		d, err := generic.ParseDate(to)
		if err != nil {
			return b, &generic.FieldError{Field: "to", Value: to, Err: err}
		}
		b.To = &d
	}
	if b.Closed() {
		if _, err := generic.NewPeriod(*b.From, *b.To); err != nil {
			return b, err
		}
	}
	return b, nil
}

func writeSummary(out io.Writer, s fleet.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Period\t%s\t\n", s.Period)
	fmt.Fprintf(w, "Months\t%d\t\n", s.Months)
	fmt.Fprintf(w, "Trips\t%d\t\n", s.TripCount)
	fmt.Fprintf(w, "Distance (km)\t%s\t\n", s.Distance.StringFixed(0))
	fmt.Fprintf(w, "Liters\t%s\t\n", s.Liters.StringFixed(2))
	fmt.Fprintln(w, "\t\t")
	fmt.Fprintf(w, "Revenue\t%s\t\n", generic.FormatEUR(s.Revenue))
	for _, line := range []struct {
		label string
		value decimal.Decimal
	}{
		{"Fuel", s.Fuel},
		{"Other expenses", s.OtherExpenses},
		{"Commission", s.Commission},
		{"Tolls", s.Tolls},
		{"Wear", s.Wear},
		{"Fixed costs", s.Fixed},
		{"Stamps", s.Stamps},
		{"Salaries", s.Salaries},
		{"Per-trip pay", s.PerTripPay},
	} {
		fmt.Fprintf(w, "%s\t%s\t\n", line.label, generic.FormatEUR(line.value))
	}
	fmt.Fprintf(w, "Total cost\t%s\t\n", generic.FormatEUR(s.TotalCost))
	fmt.Fprintf(w, "Net\t%s\t\n", generic.FormatEUR(s.Net))
	w.Flush()
}

// =============================================================================
// INTEREST
// =============================================================================

func newInterestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interest",
		Short: "Print late-payment interest for every invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, _ := cmd.Flags().GetString("as-of")
			rate, _ := cmd.Flags().GetString("rate")
			return a.interest(cmd, asOf, rate)
		},
	}
	cmd.Flags().String("as-of", "", "Settlement date for unpaid invoices; today when empty")
	cmd.Flags().String("rate", "", "Default annual rate in percent (e.g. 6 or 6,5); stored setting when empty")
	return cmd
}

func (a *app) interest(cmd *cobra.Command, asOfFlag, rateFlag string) error {
	asOf := generic.Today()
	if asOfFlag != "" {
		d, err := generic.ParseDate(asOfFlag)
		if err != nil {
			return &generic.FieldError{Field: "as-of", Value: asOfFlag, Err: err}
		}
		asOf = d
	}
	var rate *decimal.Decimal
	if rateFlag != "" {
		pct, err := generic.ParseAmount(rateFlag)
		if err != nil {
			return &generic.FieldError{Field: "rate", Value: rateFlag, Err: err}
		}
		r := generic.PercentToRate(pct)
		rate = &r
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := st.LoadInvoices(cmd.Context())
	if err != nil {
		return err
	}

	writeInterest(cmd.OutOrStdout(), interest.NewBook(data).Report(rate, asOf))
	return nil
}

func writeInterest(out io.Writer, rep interest.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "As of %s, default rate %s%%\n\n", rep.AsOf.DisplayString(), generic.RateToPercent(rep.DefaultRate).String())
	fmt.Fprintln(w, "Invoice\tCustomer\tAmount\tIssued\tDue\tSettled\tDays\tRate\tInterest")
	for _, row := range rep.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s%%\t%s\n",
			row.Invoice.Number,
			row.Customer,
			generic.FormatEUR(row.Invoice.Amount),
			row.Invoice.IssueDate.DisplayString(),
			row.DueDate.DisplayString(),
			row.SettlementDate.DisplayString(),
			row.DelayDays,
			generic.RateToPercent(row.Rate).String(),
			generic.FormatEUR(row.Interest),
		)
	}
	fmt.Fprintf(w, "\nTotal interest: %s\n", generic.FormatEUR(rep.Total))
	w.Flush()
}
