package cmd

import (
	"crypto/sha256"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/pbkdf2"
	"southwinds.dev/hwcrypt"
)

var keysCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the hardware disk encryption key",
	Long:  `Provision, update and wipe the full-disk-encryption key held by the trusted execution environment.`,
}

var keySetCmd = &cobra.Command{
	Use:   "set <password>",
	Short: "Provision the disk encryption key",
	Long: `Provision the disk encryption key in the TEE from the given password.
The operation only proceeds when the encryption mode is hardware-backed;
on inline-crypto targets the printed status is the key slot index.`,
	Args: cobra.ExactArgs(1),
	RunE: runKeySet,
}

var keyUpdateCmd = &cobra.Command{
	Use:   "update <old-password> <new-password>",
	Short: "Re-bind the disk encryption key to a new password",
	Long:  `Re-bind the disk encryption key from the old password to the new one without destroying the key material.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runKeyUpdate,
}

var keyWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Destroy the disk encryption key",
	Long: `Destroy the disk encryption key material held by the TEE. This operation
is irreversible and is honored regardless of the configured encryption mode.`,
	RunE: runKeyWipe,
}

// Flags
var (
	encMode    string
	useKDF     bool
	kdfSalt    string
	kdfRounds  int
	skipPrompt bool
)

func init() {
	keysCmd.PersistentFlags().StringVar(&encMode, "mode", hwcrypt.EncModeAESXTS, "encryption mode identifier")
	keysCmd.PersistentFlags().BoolVar(&useKDF, "kdf", false, "derive the TEE password with PBKDF2 instead of passing it through")
	keysCmd.PersistentFlags().StringVar(&kdfSalt, "kdf-salt", "", "PBKDF2 salt (required with --kdf)")
	keysCmd.PersistentFlags().IntVar(&kdfRounds, "kdf-rounds", 4096, "PBKDF2 iteration count")
	keyWipeCmd.Flags().BoolVar(&skipPrompt, "yes", false, "skip the confirmation prompt")

	keysCmd.AddCommand(keySetCmd)
	keysCmd.AddCommand(keyUpdateCmd)
	keysCmd.AddCommand(keyWipeCmd)
	rootCmd.AddCommand(keysCmd)
}

// derivePassword applies the optional PBKDF2 derivation. The raw derived key
// fills the whole 32-byte TEE password; without --kdf the password string is
// passed through unchanged.
func derivePassword(passwd string) (string, error) {
	if !useKDF {
		return passwd, nil
	}
	if kdfSalt == "" {
		return "", fmt.Errorf("--kdf-salt is required with --kdf")
	}
	derived := pbkdf2.Key([]byte(passwd), []byte(kdfSalt), kdfRounds, hwcrypt.MaxPasswordLen, sha256.New)
	return string(derived), nil
}

func runKeySet(cmd *cobra.Command, args []string) error {
	started := auditCmdStart(cmd)

	passwd, err := derivePassword(args[0])
	if err != nil {
		return auditCmdComplete(cmd, err, started)
	}

	status := gateway.SetHWDeviceEncryptionKey(passwd, encMode)
	if status < 0 {
		err = fmt.Errorf("key provisioning failed with status %d", status)
		return auditCmdComplete(cmd, err, started)
	}

	fmt.Printf("Key provisioned (status %d, backend %s)\n", status, gateway.ICEBackend())
	return auditCmdComplete(cmd, nil, started)
}

func runKeyUpdate(cmd *cobra.Command, args []string) error {
	started := auditCmdStart(cmd)

	oldPasswd, err := derivePassword(args[0])
	if err != nil {
		return auditCmdComplete(cmd, err, started)
	}
	newPasswd, err := derivePassword(args[1])
	if err != nil {
		return auditCmdComplete(cmd, err, started)
	}

	status := gateway.UpdateHWDeviceEncryptionKey(oldPasswd, newPasswd, encMode)
	if status < 0 {
		err = fmt.Errorf("key update failed with status %d", status)
		return auditCmdComplete(cmd, err, started)
	}

	fmt.Printf("Key updated (status %d, backend %s)\n", status, gateway.ICEBackend())
	return auditCmdComplete(cmd, nil, started)
}

func runKeyWipe(cmd *cobra.Command, args []string) error {
	started := auditCmdStart(cmd)

	if !skipPrompt {
		fmt.Print("This permanently destroys the disk encryption key. Type 'yes' to continue: ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "yes" {
			fmt.Println("Aborted.")
			return auditCmdComplete(cmd, nil, started)
		}
	}

	status := gateway.ClearHWDeviceEncryptionKey()
	if status < 0 {
		err := fmt.Errorf("key wipe failed with status %d", status)
		return auditCmdComplete(cmd, err, started)
	}

	fmt.Printf("Key wiped (status %d)\n", status)
	return auditCmdComplete(cmd, nil, started)
}
