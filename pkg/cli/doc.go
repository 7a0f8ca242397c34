// Package cli holds the pieces shared by the wonderchat commands: the
// context-based configuration file, output formatting with optional jq
// filtering, request file loading and the terminal status frame.
//
// Configuration lives in ~/.wonderchat/config.yaml and holds named contexts,
// similar to kubectl:
//
//	current_context: home
//	contexts:
//	  home:
//	    api_key: AIza...
//	    voice: Zephyr
//	    data_dir: ~/.wonderchat/data
//	    vad:
//	      silence_threshold: 0.02
package cli
