// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pleasehq/please/pkg/client"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the gateway in an IDE's MCP configuration",
	Long: fmt.Sprintf(`Write a "please serve" entry into the MCP configuration file of a supported
IDE or agent CLI, so the host talks to the gateway instead of each upstream.

Supported IDEs: %s.`, strings.Join(client.SupportedIDEs(), ", ")),
	RunE: installCmdFunc,
}

var (
	installIDE       string
	installUninstall bool
)

func init() {
	installCmd.Flags().StringVar(&installIDE, "ide", "", "Target IDE identifier")
	installCmd.Flags().BoolVar(&installUninstall, "uninstall", false, "Remove the gateway entry instead of adding it")
	_ = installCmd.MarkFlagRequired("ide")
}

func installCmdFunc(_ *cobra.Command, _ []string) error {
	installer, err := client.NewInstaller(client.IDE(installIDE))
	if err != nil {
		return err
	}

	if installUninstall {
		if err := installer.Remove("please"); err != nil {
			return err
		}
		fmt.Printf("Removed gateway entry from %s\n", installer.Path())
		return nil
	}

	if err := installer.Upsert("please", client.GatewayEntry()); err != nil {
		return err
	}
	fmt.Printf("Registered gateway in %s\n", installer.Path())
	fmt.Println("Restart the IDE to pick up the new MCP server")
	return nil
}
