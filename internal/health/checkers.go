// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"strings"

	"github.com/ManuGH/filechain/internal/fsutil"
)

// PingChecker reports a dependency unhealthy when its ping fails.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	optional bool
}

// NewPingChecker creates a checker for a required dependency.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// NewOptionalPingChecker creates a checker whose failures only degrade the service.
func NewOptionalPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, optional: true}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		status := StatusUnhealthy
		if c.optional {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// ChainChecker reports the ledger degraded while the chain fails validation.
// An invalid chain still serves reads and can be repaired over the API.
type ChainChecker struct {
	verify func(ctx context.Context) (bool, []string)
}

// NewChainChecker creates a chain validity checker.
func NewChainChecker(verify func(ctx context.Context) (bool, []string)) *ChainChecker {
	return &ChainChecker{verify: verify}
}

func (c *ChainChecker) Name() string { return "chain" }

func (c *ChainChecker) Check(ctx context.Context) CheckResult {
	valid, problems := c.verify(ctx)
	if !valid {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "chain failed validation",
			Error:   strings.Join(problems, ", "),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "chain valid"}
}

// DirChecker checks that a directory exists and accepts writes.
type DirChecker struct {
	name string
	dir  string
}

// NewDirChecker creates a writable-directory checker.
func NewDirChecker(name, dir string) *DirChecker {
	return &DirChecker{name: name, dir: dir}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	if err := fsutil.EnsureWritableDir(c.dir); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.dir}
	}
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}
