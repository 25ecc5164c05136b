package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/autoclaim/internal/app"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent, role lock and job status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, err := withApp(cmd)
		if err != nil {
			return err
		}
		st := a.Status()
		return render(cmd.OutOrStdout(), statusOutput, st, func(w io.Writer) error {
			return printStatus(w, st)
		})
	},
}

func printStatus(w io.Writer, st app.Status) error {
	fmt.Fprintf(w, "Workspace:   %s\n", st.Workspace)
	fmt.Fprintf(w, "Job store:   %s\n", st.Store)
	if st.StoreError != "" {
		fmt.Fprintf(w, "             unusable: %s\n", st.StoreError)
	}
	fmt.Fprintf(w, "Auto claim:  %s\n", onOff(st.Enabled))
	fmt.Fprintf(w, "Agent:       %s\n", roleLine(st.Agent))
	fmt.Fprintf(w, "Interactive: %s\n", roleLine(st.Interactive))
	fmt.Fprintf(w, "Program:     %s\n", st.Program)
	for i, ep := range st.Endpoints {
		fmt.Fprintf(w, "  api %d:     %s\n", i+1, ep)
	}
	if len(st.Jobs) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tPERMISSION\tKEY\tLAST CLAIM\tNEXT CLAIM")
	for _, j := range st.Jobs {
		key := "missing"
		if j.KeyStored {
			key = "stored"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.Account, j.Permission, key, formatInstant(j.LastClaim), formatInstant(j.NextClaim))
	}
	return tw.Flush()
}

func roleLine(r app.RoleStatus) string {
	if !r.Running {
		return "not running"
	}
	return fmt.Sprintf("running (pid %d)", r.PID)
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "Output format: text, yaml, json")
}
