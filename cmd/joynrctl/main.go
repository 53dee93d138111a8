// Command joynrctl is an operator CLI for a running joynrd process:
// it polls the admin HTTP surface (pkg/admin) for status and renders
// it either as a one-shot colored summary or as a live-updating table
// (joynrctl top, pkg/monitor). Styled after the teacher's cli/cmd
// check commands: a spinner while waiting on a remote call, colored
// ok/warn/fail glyphs for the summary.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joynr-go/joynr/pkg/admin"
	"github.com/joynr-go/joynr/pkg/monitor"
)

var (
	okStatus   = color.New(color.FgGreen, color.Bold).SprintFunc()("√")
	failStatus = color.New(color.FgRed, color.Bold).SprintFunc()("×")
)

var adminAddr string

func main() {
	root := &cobra.Command{
		Use:   "joynrctl",
		Short: "joynrctl inspects a running joynrd process",
	}
	root.PersistentFlags().StringVar(&adminAddr, "admin-addr", "http://localhost:9990", "joynrd admin HTTP address")

	root.AddCommand(statusCmd(), topCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fetchStatus(addr string) (admin.Status, error) {
	resp, err := http.Get(addr + "/status")
	if err != nil {
		return admin.Status{}, err
	}
	defer resp.Body.Close()

	var s admin.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return admin.Status{}, err
	}
	return s, nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print a snapshot of the directory and subscription counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			spin := spinner.New(spinner.CharSets[9], 100*time.Millisecond)
			spin.Suffix = " querying " + adminAddr
			spin.Start()
			s, err := fetchStatus(adminAddr)
			spin.Stop()
			if err != nil {
				fmt.Printf("%s could not reach %s: %v\n", failStatus, adminAddr, err)
				return err
			}

			fmt.Printf("%s local capabilities:   %d\n", okStatus, s.LocalCapabilities)
			fmt.Printf("%s cached capabilities:  %d\n", okStatus, s.CachedCapabilities)
			fmt.Printf("%s active subscriptions: %d\n", okStatus, s.ActiveSubscriptions)
			fmt.Printf("%s queued subscriptions: %d\n", okStatus, s.QueuedSubscriptions)
			return nil
		},
	}
}

func topCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "top",
		Short: "live-updating view of directory and subscription counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return monitor.Run(adminAddr, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "refresh interval")
	return cmd
}
