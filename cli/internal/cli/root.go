// Package cli implements the agentforge command line: an interactive chat
// client for the agent backend and a local demo server.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd creates the root agentforge command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentforge",
		Short: "Build and chat with a streaming agent",
		Long: `agentforge builds an agent from a model and a set of skills, then chats
with it over a streamed connection.

Available subcommands:
  chat        Build an agent session and chat interactively
  serve       Run the local demo backend

Examples:
  agentforge serve
  agentforge chat --model llama --skill websearch
  agentforge chat --model nemotron --skill codeinterpreter --hitl`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("server-url", "http://localhost:8000", "Agent backend base URL")
	viper.BindPFlag("server_url", cmd.PersistentFlags().Lookup("server-url"))
	viper.SetEnvPrefix("AGENTFORGE")
	viper.AutomaticEnv()

	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewServeCmd())

	return cmd
}
