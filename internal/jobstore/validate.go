package jobstore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"

	"github.com/aatumaykin/autoclaim/internal/constants"
)

// An EOSIO name is up to 12 characters of [a-z1-5.] plus an optional 13th
// character restricted to [a-j1-5], never ending in a dot.
var namePattern = re2.MustCompile(`^(?:[a-z1-5.]{0,11}[a-z1-5]|[a-z1-5.]{12}[a-j1-5])$`)

// NormalizeName folds user input to the canonical name form.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// ValidName reports whether s is a valid account or permission name.
func ValidName(s string) bool {
	return len(s) <= constants.MaxAccountNameLength && namePattern.MatchString(s)
}

// Validate checks the program's endpoints and jobs.
func (p *ProgramConfig) Validate() []error {
	var errs []error
	if len(p.Endpoints) == 0 {
		errs = append(errs, errors.New("apis: at least one endpoint required"))
	}
	for i, ep := range p.Endpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("apis[%d]: %q is not an http(s) URL", i, ep))
		}
	}

	seen := make(map[string]bool, len(p.Jobs))
	for i, j := range p.Jobs {
		if !ValidName(j.Account) {
			errs = append(errs, fmt.Errorf("jobs[%d]: invalid account name %q", i, j.Account))
		}
		if seen[j.Account] {
			errs = append(errs, fmt.Errorf("jobs[%d]: duplicate account %q", i, j.Account))
		}
		seen[j.Account] = true
		if j.PublicKey == "" {
			errs = append(errs, fmt.Errorf("jobs[%d]: public_key is required", i))
		}
		if !ValidName(j.Permission) {
			errs = append(errs, fmt.Errorf("jobs[%d]: invalid permission %q", i, j.Permission))
		}
	}
	return errs
}

// Validate checks every program.
func (c *AutoClaimConfig) Validate() []error {
	var errs []error
	for _, name := range c.ProgramNames() {
		for _, err := range c.Programs[name].Validate() {
			errs = append(errs, fmt.Errorf("%s.%w", name, err))
		}
	}
	return errs
}
