package jobstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AutoClaimConfig is the root persisted value. On disk, programs sit next to
// "enabled" at the top level:
//
//	{"enabled": true, "WAX-GBM": {"apis": [...], "jobs": [...]}}
type AutoClaimConfig struct {
	Enabled  bool
	Programs map[string]*ProgramConfig

	// extra keeps top-level values that are neither "enabled" nor a program
	// so a rewrite does not drop them.
	extra map[string]json.RawMessage
}

// ProgramConfig is one reward program.
type ProgramConfig struct {
	Endpoints []string    `json:"apis"`
	Jobs      []*ClaimJob `json:"jobs"`
}

// ClaimJob is one account claiming under a program.
type ClaimJob struct {
	Account     string
	PublicKey   string
	Permission  string
	LastClaimAt *time.Time
	NextClaimAt *time.Time
}

// JobKey identifies a job across programs.
func JobKey(program, account string) string {
	return program + "/" + account
}

// Program returns the named program, or nil.
func (c *AutoClaimConfig) Program(name string) *ProgramConfig {
	if c == nil || c.Programs == nil {
		return nil
	}
	return c.Programs[name]
}

// ProgramNames returns program ids in sorted order.
func (c *AutoClaimConfig) ProgramNames() []string {
	names := make([]string, 0, len(c.Programs))
	for name := range c.Programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnsureProgram returns the named program, creating it when absent.
func (c *AutoClaimConfig) EnsureProgram(name string) *ProgramConfig {
	if c.Programs == nil {
		c.Programs = make(map[string]*ProgramConfig)
	}
	p, ok := c.Programs[name]
	if !ok {
		p = &ProgramConfig{Endpoints: []string{}, Jobs: []*ClaimJob{}}
		c.Programs[name] = p
	}
	return p
}

// Job returns the job for account, or nil.
func (p *ProgramConfig) Job(account string) *ClaimJob {
	if p == nil {
		return nil
	}
	for _, j := range p.Jobs {
		if j.Account == account {
			return j
		}
	}
	return nil
}

// RemoveJob deletes the job for account and reports whether it existed.
func (p *ProgramConfig) RemoveJob(account string) bool {
	for i, j := range p.Jobs {
		if j.Account == account {
			p.Jobs = append(p.Jobs[:i], p.Jobs[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c *AutoClaimConfig) Clone() *AutoClaimConfig {
	if c == nil {
		return nil
	}
	out := &AutoClaimConfig{Enabled: c.Enabled, Programs: make(map[string]*ProgramConfig, len(c.Programs))}
	for name, p := range c.Programs {
		cp := &ProgramConfig{Endpoints: append([]string{}, p.Endpoints...), Jobs: make([]*ClaimJob, 0, len(p.Jobs))}
		for _, j := range p.Jobs {
			cp.Jobs = append(cp.Jobs, j.Clone())
		}
		out.Programs[name] = cp
	}
	if c.extra != nil {
		out.extra = make(map[string]json.RawMessage, len(c.extra))
		for k, v := range c.extra {
			out.extra[k] = v
		}
	}
	return out
}

// Clone returns a deep copy.
func (j *ClaimJob) Clone() *ClaimJob {
	cp := *j
	if j.LastClaimAt != nil {
		t := *j.LastClaimAt
		cp.LastClaimAt = &t
	}
	if j.NextClaimAt != nil {
		t := *j.NextClaimAt
		cp.NextClaimAt = &t
	}
	return &cp
}

const enabledKey = "enabled"

// MarshalJSON writes programs as top-level keys.
func (c AutoClaimConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Programs)+len(c.extra)+1)
	for k, v := range c.extra {
		out[k] = v
	}
	for name, p := range c.Programs {
		out[name] = p
	}
	out[enabledKey] = c.Enabled
	return json.Marshal(out)
}

// UnmarshalJSON reads the top-level layout. Every object-valued key other
// than "enabled" is a program.
func (c *AutoClaimConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = AutoClaimConfig{Programs: make(map[string]*ProgramConfig)}
	for key, value := range raw {
		if key == enabledKey {
			if err := json.Unmarshal(value, &c.Enabled); err != nil {
				return fmt.Errorf("enabled: %w", err)
			}
			continue
		}
		if trimmed := bytes.TrimSpace(value); len(trimmed) == 0 || trimmed[0] != '{' {
			if c.extra == nil {
				c.extra = make(map[string]json.RawMessage)
			}
			c.extra[key] = value
			continue
		}
		var p ProgramConfig
		if err := json.Unmarshal(value, &p); err != nil {
			return fmt.Errorf("program %s: %w", key, err)
		}
		if p.Endpoints == nil {
			p.Endpoints = []string{}
		}
		jobs := make([]*ClaimJob, 0, len(p.Jobs))
		for _, job := range p.Jobs {
			if job != nil {
				jobs = append(jobs, job)
			}
		}
		p.Jobs = jobs
		c.Programs[key] = &p
	}
	return nil
}

type claimJobWire struct {
	Account     string          `json:"account"`
	PublicKey   string          `json:"public_key"`
	Permission  string          `json:"permission"`
	LastClaim   json.RawMessage `json:"last_claim,omitempty"`
	NextClaimAt json.RawMessage `json:"next_claim_time,omitempty"`
}

// MarshalJSON writes instants as RFC 3339 UTC strings.
func (j ClaimJob) MarshalJSON() ([]byte, error) {
	w := claimJobWire{Account: j.Account, PublicKey: j.PublicKey, Permission: j.Permission}
	w.LastClaim = marshalInstant(j.LastClaimAt)
	w.NextClaimAt = marshalInstant(j.NextClaimAt)
	return json.Marshal(w)
}

// UnmarshalJSON accepts instants as epoch milliseconds, numeric strings or
// ISO-8601 strings. null and "" are absent.
func (j *ClaimJob) UnmarshalJSON(data []byte) error {
	var w claimJobWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	last, err := parseInstant(w.LastClaim)
	if err != nil {
		return fmt.Errorf("last_claim: %w", err)
	}
	next, err := parseInstant(w.NextClaimAt)
	if err != nil {
		return fmt.Errorf("next_claim_time: %w", err)
	}
	*j = ClaimJob{
		Account:     w.Account,
		PublicKey:   w.PublicKey,
		Permission:  w.Permission,
		LastClaimAt: last,
		NextClaimAt: next,
	}
	return nil
}

func marshalInstant(t *time.Time) json.RawMessage {
	if t == nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(strconv.Quote(t.UTC().Format(time.RFC3339Nano)))
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

func parseInstant(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	if raw[0] != '"' {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(string(raw), 64)
			if ferr != nil {
				return nil, fmt.Errorf("invalid instant %s", raw)
			}
			ms = int64(f)
		}
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid instant %q", s)
}
