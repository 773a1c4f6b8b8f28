package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tabsync/tabsync/internal/config"
	"github.com/tabsync/tabsync/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	GroupID: "setup",
	Short:   "Set this device's name and the ignored URLs",
	Long: `Set the name this device syncs under and the URL patterns that are never
synced.

The device name is stored only on this machine (settings.toml). Every device
must use a different name; two devices with the same name would delete each
other's tabs.

In a terminal an interactive form is shown. Otherwise use the flags:
  tabsync settings --device-name "Work Laptop" --ignored-urls "localhost,ads."`,
	Run: func(cmd *cobra.Command, args []string) {
		name := app.deviceName()
		ignored := strings.Join(app.prefs.IgnoredURLs, ", ")

		nameFlag := cmd.Flags().Lookup("device-name")
		ignoredFlag := cmd.Flags().Lookup("set-ignored-urls")
		interactive := !nameFlag.Changed && !ignoredFlag.Changed

		if interactive {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				fatalf("not a terminal; pass --device-name and/or --set-ignored-urls")
			}
			if err := settingsForm(&name, &ignored).Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Println("Cancelled.")
					return
				}
				fatalf("%v", err)
			}
		} else {
			if nameFlag.Changed {
				name = nameFlag.Value.String()
			}
			if ignoredFlag.Changed {
				ignored = ignoredFlag.Value.String()
			}
		}

		if err := app.settings.SetDeviceName(name); err != nil {
			fatalf("%v", err)
		}
		if err := app.settings.Save(app.settingsPath); err != nil {
			fatalf("%v", err)
		}
		fmt.Println(ui.Success(fmt.Sprintf("Device name: %s", app.settings.DeviceName)))

		if interactive || ignoredFlag.Changed {
			if err := config.SetPreference(app.configPath, "ignored_urls", ignored); err != nil {
				fatalf("%v", err)
			}
			fmt.Println(ui.Success(fmt.Sprintf("Ignored URLs saved to %s", app.configPath)))
		}
	},
}

func settingsForm(name, ignored *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Device name").
				Description("Unique name for this device, e.g. Work Laptop").
				Value(name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return config.ErrDeviceNameRequired
					}
					return nil
				}),
			huh.NewInput().
				Title("Ignored URLs").
				Description("Comma-separated; tabs whose URL contains any of these are not synced").
				Value(ignored),
		),
	)
}

func init() {
	settingsCmd.Flags().String("device-name", "", "Set the device name without the interactive form")
	settingsCmd.Flags().String("set-ignored-urls", "", "Set the ignored URL list without the interactive form")
	rootCmd.AddCommand(settingsCmd)
}
