package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/luispaiva/chatsync/internal/daemon"
	"github.com/luispaiva/chatsync/internal/paths"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default ~/.chatsync/config.toml)")
	conversationFlag := flag.String("conversation", "", "conversation id to open")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = paths.ConfigPath()
	}
	if *conversationFlag == "" {
		fmt.Fprintln(os.Stderr, "error: --conversation is required")
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			ConfigPath:     configPath,
			ConversationID: *conversationFlag,
		}),
	)

	app.Run()
}
