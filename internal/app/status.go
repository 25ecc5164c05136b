package app

import (
	"slices"
	"time"

	"github.com/aatumaykin/autoclaim/internal/credentials"
	"github.com/aatumaykin/autoclaim/internal/instance"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
)

// RoleStatus describes one role lock.
type RoleStatus struct {
	Running bool `yaml:"running" json:"running"`
	PID     int  `yaml:"pid,omitempty" json:"pid,omitempty"`
}

// JobStatus is one claim job as seen on disk.
type JobStatus struct {
	Account    string     `yaml:"account" json:"account"`
	Permission string     `yaml:"permission" json:"permission"`
	PublicKey  string     `yaml:"public_key" json:"public_key"`
	KeyStored  bool       `yaml:"key_stored" json:"key_stored"`
	LastClaim  *time.Time `yaml:"last_claim,omitempty" json:"last_claim,omitempty"`
	NextClaim  *time.Time `yaml:"next_claim,omitempty" json:"next_claim,omitempty"`
}

// Status is a read-only snapshot of the workspace.
type Status struct {
	Workspace   string      `yaml:"workspace" json:"workspace"`
	Store       string      `yaml:"store" json:"store"`
	StoreError  string      `yaml:"store_error,omitempty" json:"store_error,omitempty"`
	Enabled     bool        `yaml:"enabled" json:"enabled"`
	Program     string      `yaml:"program" json:"program"`
	Endpoints   []string    `yaml:"endpoints" json:"endpoints"`
	Agent       RoleStatus  `yaml:"agent" json:"agent"`
	Interactive RoleStatus  `yaml:"interactive" json:"interactive"`
	Jobs        []JobStatus `yaml:"jobs" json:"jobs"`
}

// Status reads the job store, role locks and key store without changing
// any of them.
func (a *App) Status() Status {
	st := Status{
		Workspace: a.config.Workspace.Path,
		Store:     a.config.JobStorePath(),
		Program:   a.config.Agent.Program,
		Jobs:      []JobStatus{},
	}

	held, pid := a.locks.Inspect(instance.RoleAutostart)
	st.Agent = RoleStatus{Running: held, PID: livePID(held, pid)}
	held, pid = a.locks.Inspect(instance.RoleInteractive)
	st.Interactive = RoleStatus{Running: held, PID: livePID(held, pid)}

	ac, err := jobstore.New(st.Store, a.logger).Load()
	if err != nil {
		st.StoreError = err.Error()
		return st
	}
	st.Enabled = ac.Enabled

	p := ac.Program(a.config.Agent.Program)
	if p == nil {
		return st
	}
	st.Endpoints = p.Endpoints

	stored, _ := credentials.NewStore(a.config.CredentialsDir(), "").List(a.config.Credentials.Service)
	for _, job := range p.Jobs {
		st.Jobs = append(st.Jobs, JobStatus{
			Account:    job.Account,
			Permission: job.Permission,
			PublicKey:  job.PublicKey,
			KeyStored:  slices.Contains(stored, job.PublicKey),
			LastClaim:  job.LastClaimAt,
			NextClaim:  job.NextClaimAt,
		})
	}
	return st
}

func livePID(held bool, pid int) int {
	if !held {
		return 0
	}
	return pid
}
