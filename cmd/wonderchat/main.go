// Command wonderchat is a voice companion for children.
//
// Usage:
//
//	wonderchat [flags] <command> [args]
//
// Commands:
//
//	live        realtime voice conversation over the microphone and speaker
//	ask         one text question answered by the chat model
//	profile     manage child profiles
//	transcript  browse and export recorded conversations
//	devices     list audio devices
//	config      manage contexts
//
// Configuration is stored in ~/.wonderchat/config.yaml.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/wonderchat/cmd/wonderchat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
