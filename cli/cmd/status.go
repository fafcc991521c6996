package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statusYAML bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long:  "Display the selected storage backend, the keymaster binding decision, library state and memory protection level.",
	RunE:  showStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusYAML, "yaml", false, "output status as YAML")
	rootCmd.AddCommand(statusCmd)
}

type gatewayStatus struct {
	Backend          string `yaml:"backend"`
	HardwareFDE      bool   `yaml:"hardware_fde"`
	UseKeymaster     bool   `yaml:"use_keymaster"`
	LibraryLoaded    bool   `yaml:"library_loaded"`
	MemoryProtection string `yaml:"memory_protection"`
}

func showStatus(cmd *cobra.Command, args []string) error {
	status := gatewayStatus{
		Backend:          gateway.ICEBackend().String(),
		HardwareFDE:      gateway.IsHWDiskEncryption(encMode),
		UseKeymaster:     gateway.ShouldUseKeymaster(),
		LibraryLoaded:    gateway.LibraryLoaded(),
		MemoryProtection: gateway.MemoryProtection().String(),
	}

	if statusYAML {
		out, err := yaml.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	fmt.Println("Gateway Status")
	fmt.Println("==============")

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Storage Backend:\t%s\n", status.Backend)
	fmt.Fprintf(w, "Hardware FDE:\t%v\n", status.HardwareFDE)
	fmt.Fprintf(w, "Keymaster Binding:\t%v\n", status.UseKeymaster)
	fmt.Fprintf(w, "Library Loaded:\t%v\n", status.LibraryLoaded)
	fmt.Fprintf(w, "Memory Protection:\t%s\n", status.MemoryProtection)
	return w.Flush()
}
