package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rill/internal/cfg"
	"rill/internal/ir"
)

var cfgFuncFilter string

var cfgCmd = &cobra.Command{
	Use:   "cfg [flags] <module.rir>",
	Short: "Dump the control-flow graph of a module's functions",
	Args:  cobra.ExactArgs(1),
	RunE:  runCfgDump,
}

func init() {
	cfgCmd.Flags().StringVar(&cfgFuncFilter, "func", "", "dump only the named function")
}

func runCfgDump(cmd *cobra.Command, args []string) error {
	mod, err := ir.ReadModuleFile(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if err := ir.Validate(mod); err != nil {
		return err
	}
	found := false
	for _, fn := range mod.Funcs {
		if fn == nil || (cfgFuncFilter != "" && fn.Name != cfgFuncFilter) {
			continue
		}
		found = true
		g, err := cfg.Build(fn)
		if err != nil {
			return fmt.Errorf("%s: %w", fn.Name, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), cfg.Dump(g))
	}
	if cfgFuncFilter != "" && !found {
		return fmt.Errorf("no function named %q in %s", cfgFuncFilter, args[0])
	}
	return nil
}
