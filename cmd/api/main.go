package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmaster/agenda/cmd/api/commands"
)

// @title Agenda API
// @version 1.0
// @description Personal agenda with tasks, exams, shopping lists, time-tracked projects and a pomodoro timer

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and a token from "agenda token".

func main() {
	rootCmd := &cobra.Command{
		Use:           "agenda",
		Short:         "Agenda API Server",
		Long:          `Agenda keeps tasks, exams, shopping lists and time-tracked projects in a shared database and serves them over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	commands.AddFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewTimersCommand())
	rootCmd.AddCommand(commands.NewTokenCommand())
	rootCmd.AddCommand(commands.NewSecretCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		os.Exit(1)
	}
}
