package main

import (
	"fmt"

	"github.com/fwojciec/harvest/fs"
)

// Run executes the count command.
func (c *CountCmd) Run(deps *Dependencies) error {
	n, err := fs.CountDocuments(c.Dir)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}
	fmt.Fprintf(deps.Stdout, "Found %d documents in %s\n", n, c.Dir)
	return nil
}
