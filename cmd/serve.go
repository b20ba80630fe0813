package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sp1nlock/legwork/internal/server"
	"github.com/sp1nlock/legwork/pkg/export"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a previously exported session as a browsable report",
	RunE: func(cmd *cobra.Command, args []string) error {
		reportPath, _ := cmd.Flags().GetString("report")
		if reportPath == "" {
			return fmt.Errorf("a --report export file is required")
		}
		f, err := os.Open(reportPath)
		if err != nil {
			return err
		}
		doc, err := export.ReadJSON(f)
		f.Close()
		if err != nil {
			return err
		}

		addr, _ := cmd.Flags().GetString("addr")
		user, _ := cmd.Flags().GetString("username")
		if user == "" {
			user = viper.GetString("serve.username")
		}
		pass, _ := cmd.Flags().GetString("password")
		if pass == "" {
			pass = viper.GetString("serve.password")
		}

		return server.New(doc, user, pass).Start(addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("report", "r", "", "Path to a JSON export produced by `legwork search --out`")
	serveCmd.Flags().String("addr", "127.0.0.1:7020", "HTTP listen address")
	serveCmd.Flags().String("username", "", "Basic auth username (default from config)")
	serveCmd.Flags().String("password", "", "Basic auth password (default from config)")
}
