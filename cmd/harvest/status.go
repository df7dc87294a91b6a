package main

import (
	"fmt"

	"github.com/fwojciec/harvest"
	"github.com/fwojciec/harvest/sqlite"
)

// Run executes the status command.
func (c *StatusCmd) Run(deps *Dependencies) error {
	store := deps.States
	if store == nil {
		if c.StateDB == "" {
			err := harvest.Errorf(harvest.EINVALID, "--state-db is required")
			fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
			return err
		}
		db := sqlite.NewDB(c.StateDB)
		if err := db.Open(); err != nil {
			return fmt.Errorf("failed to open state database at %q: %w", c.StateDB, err)
		}
		defer db.Close()
		store = sqlite.NewStateStore(db)
	}

	snap, err := store.Load(deps.Ctx)
	if harvest.ErrorCode(err) == harvest.ENOTFOUND {
		fmt.Fprintln(deps.Stdout, "No saved progress")
		return nil
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Run:       %s\n", snap.RunID)
	fmt.Fprintf(deps.Stdout, "Processed: %d\n", len(snap.Processed))
	fmt.Fprintf(deps.Stdout, "Failed:    %d\n", len(snap.Failed))
	if snap.NextPage != "" {
		fmt.Fprintf(deps.Stdout, "Next page: %s\n", snap.NextPage)
	} else {
		fmt.Fprintln(deps.Stdout, "Next page: (done)")
	}
	return nil
}
