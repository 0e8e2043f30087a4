package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ajay443/smart-social-distancing/internal/cameras"
)

// CreateCheckConfigCmd creates the check-config command.
func CreateCheckConfigCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the camera definitions file",
		Long: `Loads and validates the camera definitions file without starting any feeds. ` +
			`Prints the resolved cameras on success and exits non-zero on the first validation error.`,
		Run: func(_ *cobra.Command, _ []string) {
			specs, err := cameras.LoadSpecs(configFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", configFile, err)
				os.Exit(1)
			}

			if len(specs) == 0 {
				fmt.Printf("%s: no cameras defined\n", configFile)
				return
			}

			ids := make([]string, 0, len(specs))
			for id := range specs {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			fmt.Printf("%s: %d camera(s)\n", configFile, len(ids))
			for _, id := range ids {
				spec := specs[id]
				switch spec.Source {
				case cameras.SourceZMQ:
					fmt.Printf("  %s: %s (zmq %s)\n", id, spec.Name, spec.Endpoint)
				default:
					fmt.Printf("  %s: %s (%s %dx%d @ %d fps)\n", id, spec.Name, spec.Source, spec.Width, spec.Height, spec.FPS)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&configFile, "file", "f", "cameras.toml", "Path to camera definitions file")

	return cmd
}
