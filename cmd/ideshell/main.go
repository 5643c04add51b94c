package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

// PreviewFlags holds flags for preview start/stop/status
type PreviewFlags struct {
	ServiceID   string
	ServiceName string
	Port        int
}

// SaveFlags holds flags for the save command
type SaveFlags struct {
	FileID string
	From   string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createPreviewCommand(globalFlags),
		createSaveCommand(globalFlags),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "ideshell",
		Short: "Preview and save daemon for the browser IDE",
		Long: `ideshell runs one dev server per workspace service and saves editor
content to the metadata store and to disk.

Examples:
  ideshell serve ideshell.toml
  ideshell preview start --service-id=svc-1 --service-name=service-1 --port=3001
  ideshell preview status
  ideshell save --file-id=f-1 --from=./page.tsx`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "http://localhost:3000/api", "daemon API URL")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 30*time.Second, "request timeout")
	return root
}

// createServeCommand creates the serve subcommand
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the ideshell daemon",
		Long: `Start the daemon serving the preview and save endpoints.
Without a config file the built-in defaults and IDESHELL_* environment
variables apply.

Examples:
  ideshell serve
  ideshell serve ideshell.toml
  IDESHELL_SERVER_LISTEN=:3100 ideshell serve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return runServe(cmd.Context(), path)
		},
	}
}

// createPreviewCommand creates the preview command group
func createPreviewCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &PreviewFlags{}
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Control dev-server previews through the daemon",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the dev server of a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return previewStart(cmd, newAPIClient(globalFlags), *flags)
		},
	}
	start.Flags().StringVar(&flags.ServiceID, "service-id", "", "service id (required)")
	start.Flags().StringVar(&flags.ServiceName, "service-name", "", "service directory name (required)")
	start.Flags().IntVar(&flags.Port, "port", 0, "dev server port (required)")
	for _, f := range []string{"service-id", "service-name", "port"} {
		if err := start.MarkFlagRequired(f); err != nil {
			panic(err)
		}
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the dev server of a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return previewStop(cmd, newAPIClient(globalFlags), flags.ServiceID)
		},
	}
	stop.Flags().StringVar(&flags.ServiceID, "service-id", "", "service id (required)")
	if err := stop.MarkFlagRequired("service-id"); err != nil {
		panic(err)
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show running previews",
		RunE: func(cmd *cobra.Command, args []string) error {
			return previewStatus(cmd, newAPIClient(globalFlags), flags.ServiceID)
		},
	}
	status.Flags().StringVar(&flags.ServiceID, "service-id", "", "service id (all running previews when empty)")

	cmd.AddCommand(start, stop, status)
	return cmd
}

// createSaveCommand creates the save subcommand
func createSaveCommand(globalFlags *GlobalFlags) *cobra.Command {
	flags := &SaveFlags{}
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a file through the daemon",
		Long: `Send the contents of a local file (or stdin with --from=-) as the new
content of a file record. The daemon writes the record and the workspace file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return saveFile(cmd, newAPIClient(globalFlags), *flags)
		},
	}
	cmd.Flags().StringVar(&flags.FileID, "file-id", "", "file record id (required)")
	cmd.Flags().StringVar(&flags.From, "from", "-", "path to read content from; - for stdin")
	if err := cmd.MarkFlagRequired("file-id"); err != nil {
		panic(err)
	}
	return cmd
}
