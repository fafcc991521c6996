package cmd

import (
	"fmt"
	"log"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"southwinds.dev/hwcrypt"
	"southwinds.dev/hwcrypt/audit"
)

var (
	cfgFile     string
	gateway     *hwcrypt.Gateway
	auditLogger audit.Logger
	cliContext  *CLIContext
)

type CLIContext struct {
	UserID    string
	SessionID string
	Source    string // hostname
	StartTime time.Time
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hwcrypt",
	Short: "Hardware-backed disk encryption key management",
	Long: `A gateway to the hardware-backed full-disk-encryption key service.
Keys are provisioned, updated and wiped inside the trusted execution
environment; password material never leaves locked memory on the way in.`,
	PersistentPreRunE: initializeGateway,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if gateway != nil {
			return gateway.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags - consistent with config file structure
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hwcrypt.yaml)")
	rootCmd.PersistentFlags().String("property-file", "", "system property file backing the gateway")
	rootCmd.PersistentFlags().String("library", "", "TEE client library name or path")
	rootCmd.PersistentFlags().String("module-dir", "", "hardware module descriptor directory")
	rootCmd.PersistentFlags().Bool("memory-lock", false, "lock process memory against swapping")

	bindFlagOrPanic("gateway.property_file", "property-file")
	bindFlagOrPanic("gateway.library", "library")
	bindFlagOrPanic("gateway.module_dir", "module-dir")
	bindFlagOrPanic("gateway.memory_lock", "memory-lock")

	// Audit flags
	rootCmd.PersistentFlags().Bool("audit", false, "enable audit logging")
	rootCmd.PersistentFlags().String("audit-type", "", "audit logger type (file, syslog)")
	rootCmd.PersistentFlags().String("audit-file", "", "audit log file path")

	bindFlagOrPanic("audit.enabled", "audit")
	bindFlagOrPanic("audit.type", "audit-type")
	bindFlagOrPanic("audit.options.file_path", "audit-file")
}

func bindFlagOrPanic(configKey, flagName string) {
	if err := viper.BindPFlag(configKey, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flagName, err))
	}
}

func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/hwcrypt")

		viper.SetConfigType("yaml")
		viper.SetConfigName(".hwcrypt")
	}

	viper.SetEnvPrefix("HWCRYPT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}
}

func setDefaults() {
	def := hwcrypt.DefaultOptions()
	viper.SetDefault("gateway.property_file", def.PropertyFile)
	viper.SetDefault("gateway.library", def.Library)
	viper.SetDefault("gateway.module_dir", def.ModuleDir)
	viper.SetDefault("gateway.memory_lock", false)

	viper.SetDefault("audit.enabled", false)
	viper.SetDefault("audit.type", "file")
	viper.SetDefault("audit.options.file_path", "/var/log/hwcrypt/audit.log")
	viper.SetDefault("audit.options.max_size", 100)
	viper.SetDefault("audit.options.max_backups", 5)
}

func initializeGateway(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
		return nil
	}

	cliContext = &CLIContext{
		UserID:    getCurrentUser(),
		SessionID: uuid.NewString(),
		Source:    getHostname(),
		StartTime: time.Now(),
	}

	var err error
	auditLogger, err = audit.NewLogger(auditConfig())
	if err != nil {
		return fmt.Errorf("failed to create audit logger: %w", err)
	}

	options := hwcrypt.Options{
		PropertyFile:     viper.GetString("gateway.property_file"),
		Library:          viper.GetString("gateway.library"),
		ModuleDir:        viper.GetString("gateway.module_dir"),
		EnableMemoryLock: viper.GetBool("gateway.memory_lock"),
		Audit:            auditConfig(),
	}

	gateway, err = hwcrypt.New(options)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	return nil
}

func auditConfig() *audit.Config {
	return &audit.Config{
		Enabled:  viper.GetBool("audit.enabled"),
		DeviceID: getHostname(),
		Type:     audit.ConfigType(viper.GetString("audit.type")),
		Options: map[string]interface{}{
			"file_path":   viper.GetString("audit.options.file_path"),
			"max_size":    viper.GetInt("audit.options.max_size"),
			"max_backups": viper.GetInt("audit.options.max_backups"),
		},
	}
}

// getCurrentUser retrieves the username of the currently logged-in user.
// It returns "unknown_user" if the user cannot be determined.
func getCurrentUser() string {
	currentUser, err := user.Current()
	if err != nil {
		log.Printf("Warning: could not get current user: %v", err)
		if envUser := os.Getenv("USER"); envUser != "" {
			return envUser
		}
		return "unknown_user"
	}
	return currentUser.Username
}

// getHostname retrieves the hostname of the machine.
// It returns "unknown_host" if the hostname cannot be determined.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		log.Printf("Warning: could not get hostname: %v", err)
		return "unknown_host"
	}
	return hostname
}

// isSensitiveFlag reports whether a flag value must never reach logs.
func isSensitiveFlag(name string) bool {
	sensitive := []string{"password", "passphrase", "secret", "key", "token"}
	lower := strings.ToLower(name)
	for _, s := range sensitive {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func sanitizeFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if flag.Changed {
			if isSensitiveFlag(flag.Name) {
				flags[flag.Name] = "[REDACTED]"
			} else {
				flags[flag.Name] = flag.Value.String()
			}
		}
	})
	return flags
}

func auditCmdStart(cmd *cobra.Command) time.Time {
	now := time.Now()
	err := auditLogger.Log("command_start", true, map[string]interface{}{
		"command":    cmd.CommandPath(),
		"flags":      sanitizeFlags(cmd),
		"user_id":    cliContext.UserID,
		"session_id": cliContext.SessionID,
		"source":     cliContext.Source,
	})
	if err != nil {
		log.Printf("ERROR: %v", err)
	}
	return now
}

func auditCmdComplete(cmd *cobra.Command, err error, startedTime time.Time) error {
	if auditLogger != nil {
		auditLogger.Log("command_complete", err == nil, map[string]interface{}{
			"command":     cmd.CommandPath(),
			"duration_ms": time.Since(startedTime).Milliseconds(),
			"success":     err == nil,
			"user_id":     cliContext.UserID,
			"session_id":  cliContext.SessionID,
		})
	}
	return err
}
