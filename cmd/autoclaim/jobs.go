package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/autoclaim/internal/constants"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
)

var (
	jobPublicKey  string
	jobPermission string
	jobAPIs       []string
	jobsOutput    string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage claim jobs in the job store",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List claim jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsAddCmd = &cobra.Command{
	Use:   "add <account>",
	Short: "Add or update a claim job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsAdd,
}

var jobsRemoveCmd = &cobra.Command{
	Use:   "remove <account>",
	Short: "Remove a claim job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRemove,
}

// jobView is the listing shape of one job.
type jobView struct {
	Account    string     `yaml:"account" json:"account"`
	Permission string     `yaml:"permission" json:"permission"`
	PublicKey  string     `yaml:"public_key" json:"public_key"`
	LastClaim  *time.Time `yaml:"last_claim,omitempty" json:"last_claim,omitempty"`
	NextClaim  *time.Time `yaml:"next_claim,omitempty" json:"next_claim,omitempty"`
}

type jobsView struct {
	Program   string    `yaml:"program" json:"program"`
	Enabled   bool      `yaml:"enabled" json:"enabled"`
	Endpoints []string  `yaml:"apis" json:"apis"`
	Jobs      []jobView `yaml:"jobs" json:"jobs"`
}

func runJobsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ac, err := jobstore.New(cfg.JobStorePath(), cliLogger(cmd)).Load()
	if err != nil && !jobstore.IsMissing(err) {
		return err
	}

	view := jobsView{Program: cfg.Agent.Program, Jobs: []jobView{}}
	if ac != nil {
		view.Enabled = ac.Enabled
		if p := ac.Program(cfg.Agent.Program); p != nil {
			view.Endpoints = p.Endpoints
			for _, j := range p.Jobs {
				view.Jobs = append(view.Jobs, jobView{
					Account:    j.Account,
					Permission: j.Permission,
					PublicKey:  j.PublicKey,
					LastClaim:  j.LastClaimAt,
					NextClaim:  j.NextClaimAt,
				})
			}
		}
	}

	return render(cmd.OutOrStdout(), jobsOutput, view, func(w io.Writer) error {
		if len(view.Jobs) == 0 {
			fmt.Fprintln(w, constants.MsgNoJobs)
			return nil
		}
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "ACCOUNT\tPERMISSION\tLAST CLAIM\tNEXT CLAIM")
		for _, j := range view.Jobs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.Account, j.Permission, formatInstant(j.LastClaim), formatInstant(j.NextClaim))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, constants.MsgJobsTotal, len(view.Jobs))
		return nil
	})
}

func runJobsAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	account := jobstore.NormalizeName(args[0])
	permission := jobstore.NormalizeName(jobPermission)
	publicKey := strings.TrimSpace(jobPublicKey)
	if publicKey == "" {
		return errors.New("--public-key is required")
	}

	added := false
	store := jobstore.New(cfg.JobStorePath(), cliLogger(cmd))
	err = store.Update(func(ac *jobstore.AutoClaimConfig) error {
		p := ac.EnsureProgram(cfg.Agent.Program)
		if len(jobAPIs) > 0 {
			p.Endpoints = jobAPIs
		}
		job := p.Job(account)
		if job == nil {
			job = &jobstore.ClaimJob{Account: account}
			p.Jobs = append(p.Jobs, job)
			added = true
		}
		job.PublicKey = publicKey
		job.Permission = permission
		return errors.Join(p.Validate()...)
	})
	if err != nil {
		return err
	}

	msg := constants.MsgJobUpdated
	if added {
		msg = constants.MsgJobAdded
	}
	fmt.Fprintf(cmd.OutOrStdout(), msg, cfg.Agent.Program, account, permission)
	return nil
}

func runJobsRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	account := jobstore.NormalizeName(args[0])

	store := jobstore.New(cfg.JobStorePath(), cliLogger(cmd))
	err = store.Update(func(ac *jobstore.AutoClaimConfig) error {
		p := ac.Program(cfg.Agent.Program)
		if p == nil || !p.RemoveJob(account) {
			return fmt.Errorf(constants.MsgJobNotFound, account)
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), constants.MsgJobRemoved, account)
	return nil
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}

func init() {
	jobsListCmd.Flags().StringVarP(&jobsOutput, "output", "o", "text", "Output format: text, yaml, json")

	jobsAddCmd.Flags().StringVarP(&jobPublicKey, "public-key", "k", "", "Public key whose private key signs the claim")
	jobsAddCmd.Flags().StringVarP(&jobPermission, "permission", "p", "active", "Permission used to sign the claim")
	jobsAddCmd.Flags().StringSliceVar(&jobAPIs, "api", nil, "RPC endpoint, in priority order (repeatable; replaces the program's list)")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsAddCmd)
	jobsCmd.AddCommand(jobsRemoveCmd)
}
