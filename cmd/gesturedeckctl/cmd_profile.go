/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/gesturedeck/internal/gesture/mapper"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and validate gesture mapping profiles",
}

var profileValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Load a mapping profile YAML file and report which rules parsed",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileValidate,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileValidateCmd)
}

func runProfileValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	raw, err := mapper.LoadProfile(path)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	parsed := mapper.ParseMappings(raw)
	fmt.Printf("profile %q (%s): %d rules on disk, %d parsed\n", raw.ID, raw.Name, len(raw.Mappings), len(parsed))
	if len(parsed) != len(raw.Mappings) {
		fmt.Printf("warning: %d rule(s) were skipped (unrecognized gesture, kind, mode, or hand requirement)\n",
			len(raw.Mappings)-len(parsed))
	}
	for _, m := range parsed {
		fmt.Printf("  - %-24s %-18s hand=%-6s kind=%-10s mode=%-10s priority=%d\n",
			m.ID, m.Gesture, m.HandRequirement, m.Kind, m.Mode, m.Priority)
	}
	return nil
}
