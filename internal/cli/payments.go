package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(paymentsCmd)
	paymentsCmd.AddCommand(paymentsPendingCmd)
	paymentsCmd.AddCommand(paymentsVerifyCmd)
	paymentsCmd.AddCommand(paymentsRejectCmd)

	paymentsRejectCmd.Flags().StringP("reason", "r", "", "Rejection reason sent to the owner")
}

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Review manual subscription payments",
}

var paymentsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending payment requests, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runPaymentsPending,
}

func runPaymentsPending(cmd *cobra.Command, _ []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	list, err := env.services.Billing.ListPending(cmd.Context())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no pending payments")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tPLAN\tAMOUNT\tEMAIL\tREQUESTED")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Code, p.Plan, p.Amount.StringFixed(2), p.Email, p.RequestedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

var paymentsVerifyCmd = &cobra.Command{
	Use:   "verify CODE",
	Short: "Verify a payment and activate the plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaymentsVerify,
}

func runPaymentsVerify(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	p, err := env.services.Billing.Verify(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "payment %s verified, plan %s activated\n", p.Code, p.Plan)
	return nil
}

var paymentsRejectCmd = &cobra.Command{
	Use:   "reject CODE",
	Short: "Reject a payment",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaymentsReject,
}

func runPaymentsReject(cmd *cobra.Command, args []string) error {
	reason, _ := cmd.Flags().GetString("reason")

	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	p, err := env.services.Billing.Reject(cmd.Context(), args[0], reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "payment %s rejected: %s\n", p.Code, p.Notes)
	return nil
}
