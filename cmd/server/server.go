package main

import (
	"github.com/spf13/cobra"

	"github.com/kokukuma/openid4vp-verifier/cmd/server/startcmd"
	"github.com/kokukuma/openid4vp-verifier/internal/log"
)

var logger = log.New("verifier")

func main() {
	rootCmd := &cobra.Command{
		Use: "verifier",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.AddCommand(startcmd.GetStartCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to run verifier", log.WithError(err))
	}
}
