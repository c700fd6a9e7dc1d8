package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bookforge/abridge/internal/config"
)

var providersCmd = &cobra.Command{
	Use:          "providers",
	Short:        "List configured LLM providers",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		names := make([]string, 0, len(cfg.LLMProviders))
		for name := range cfg.LLMProviders {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			p := cfg.LLMProviders[name]

			status := "disabled"
			if p.Enabled {
				status = "enabled"
			}
			marker := " "
			if name == cfg.Defaults.LLMProvider {
				marker = "*"
			}
			fmt.Printf("%s %-12s %-10s model=%s rpm=%.0f (%s)\n",
				marker, name, p.Type, p.Model, p.RateLimit, status)
		}
		return nil
	},
}
