package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"rill/internal/driver"
	"rill/internal/ir"
	"rill/internal/ui"
)

type verifyOutcome struct {
	result *driver.ModuleResult
	err    error
}

// verifyWithUI runs the batch behind a Bubble Tea progress view. The driver
// closes the events channel when it finishes, which quits the program.
func verifyWithUI(ctx context.Context, mod *ir.Module, opts driver.Options) (*driver.ModuleResult, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan verifyOutcome, 1)

	names := make([]string, 0, len(mod.Funcs))
	for _, fn := range mod.Funcs {
		if fn != nil {
			names = append(names, fn.Name)
		}
	}

	go func() {
		optsCopy := opts
		optsCopy.Events = events
		res, err := driver.VerifyModule(ctx, mod, optsCopy)
		outcomeCh <- verifyOutcome{result: res, err: err}
	}()

	model := ui.NewProgressModel("verifying "+mod.Name, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
