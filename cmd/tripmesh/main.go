package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tripmesh/tripmesh"
	"github.com/tripmesh/tripmesh/config"
	"github.com/tripmesh/tripmesh/core"
)

var rootCmd = &cobra.Command{
	Use:   "tripmesh",
	Short: "TripMesh - conversational travel assistant",
	Long: `TripMesh answers travel questions (weather, destinations, packing,
attractions, entry rules, flights) over a threaded conversation with
persistent trip context. Configuration comes from config.yaml plus
environment variables.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tm, err := tripmesh.New(cfg)
		if err != nil {
			return err
		}
		return tm.Serve()
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant on the terminal",
	Long: `Starts an interactive session on stdin/stdout. Type "/why" to see how
the last answer was produced, "/clear" to reset the conversation, and
"exit" to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tm, err := tripmesh.New(cfg)
		if err != nil {
			return err
		}

		threadID, _ := cmd.Flags().GetString("thread")
		if threadID == "" {
			threadID = uuid.NewString()
		}
		fmt.Printf("TripMesh ready (thread %s). Where are you headed?\n", threadID)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				return nil
			}

			_, events, err := tm.ChatSync(cmd.Context(), threadID, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			if reply := lastReply(events); reply != "" {
				fmt.Println(reply)
			}
		}
	},
}

func lastReply(events []core.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.IsPartial() || ev.Content == nil || ev.Content.Role != "assistant" {
			continue
		}
		return ev.Content.Text()
	}
	return ""
}

func main() {
	chatCmd.Flags().String("thread", "", "thread ID to resume (defaults to a new thread)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
