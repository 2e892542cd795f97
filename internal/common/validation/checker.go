package validation

import (
	"fmt"
	"net/url"
	"strings"

	"rul-pipeline/internal/common/errors"
)

// Checker collects problems found while checking hand-written settings
// (environment variables, hyperparameters) and reports them together.
type Checker struct {
	scope    string
	problems []string
}

// NewChecker returns a Checker whose messages are prefixed with scope when
// it is not empty.
func NewChecker(scope string) *Checker {
	return &Checker{scope: scope}
}

func (c *Checker) addf(format string, args ...interface{}) *Checker {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
	return c
}

// Required flags a blank value.
func (c *Checker) Required(name, value string) *Checker {
	if strings.TrimSpace(value) == "" {
		return c.addf("%s is required", name)
	}
	return c
}

// OneOf flags a value outside allowed. An empty value counts as missing.
func (c *Checker) OneOf(name, value string, allowed ...string) *Checker {
	if value == "" {
		return c.addf("%s is required", name)
	}
	for _, a := range allowed {
		if value == a {
			return c
		}
	}
	return c.addf("%s must be one of: %s", name, strings.Join(allowed, ", "))
}

// URL flags a value that is not an absolute URL with a host.
func (c *Checker) URL(name, value string) *Checker {
	if value == "" {
		return c.addf("%s is required", name)
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return c.addf("%s must be a complete URL with scheme and host", name)
	}
	return c
}

// Positive flags value <= 0.
func (c *Checker) Positive(name string, value int) *Checker {
	if value <= 0 {
		return c.addf("%s must be positive", name)
	}
	return c
}

// NonNegative flags value < 0.
func (c *Checker) NonNegative(name string, value int) *Checker {
	if value < 0 {
		return c.addf("%s must be non-negative", name)
	}
	return c
}

// AtLeast flags value < min. NaN is always flagged.
func (c *Checker) AtLeast(name string, value, min float64) *Checker {
	if !(value >= min) {
		return c.addf("%s must be at least %g, got %g", name, min, value)
	}
	return c
}

// Check records err when it is not nil.
func (c *Checker) Check(err error) *Checker {
	if err != nil {
		c.problems = append(c.problems, err.Error())
	}
	return c
}

// CheckIf runs fn only when cond holds.
func (c *Checker) CheckIf(cond bool, fn func() error) *Checker {
	if cond {
		return c.Check(fn())
	}
	return c
}

// Problems returns the messages collected so far.
func (c *Checker) Problems() []string {
	return c.problems
}

// Err returns nil when nothing was flagged, otherwise a validation
// AppError listing every problem.
func (c *Checker) Err() error {
	if len(c.problems) == 0 {
		return nil
	}
	msg := strings.Join(c.problems, "; ")
	if c.scope != "" {
		msg = c.scope + ": " + msg
	}
	return errors.ValidationError(msg).WithContext("problems", len(c.problems))
}
