// Package config provides the configuration system for ttyld.
//
// Configuration is assembled from three layers, higher layers overriding
// lower ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← TTYLD_*, highest priority
//	├─────────────────────────────┤
//	│  2. Configuration File      │  ← ttyld.toml or ttyld.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← lowest priority
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - loader: file loading (TOML, YAML) and environment variables
//   - watcher: file watching for live reload
//
// # Configuration Files
//
// The file format follows the extension. A TOML example:
//
//	[log]
//	level = "debug"
//
//	[tty]
//	bufferSize = 4096
//	iflag = ["ICRNL"]
//	oflag = ["OPOST", "ONLCR"]
//	lflag = ["ISIG", "ICANON", "ECHO", "ECHOE"]
//	rows = 24
//	cols = 80
//
//	[tty.controlChars]
//	erase = "^H"
//	intr = "^C"
//
//	[pty]
//	maxPairs = 64
//	shutdownTimeout = "5s"
//
// A flag list that is present replaces the whole flag word; an absent list
// keeps the built-in default. Control characters are written "^X" for
// control keys, "^?" for DEL, "undef" to disable, or as a number.
//
// # Environment
//
// TTYLD_LOG_LEVEL, TTYLD_LOG_FILE, TTYLD_BUFFER_SIZE, TTYLD_ROWS,
// TTYLD_COLS, TTYLD_MAX_PAIRS and TTYLD_SHUTDOWN_TIMEOUT are recognised by
// name. Any other TTYLD_SECTION_SETTING_NAME variable sets
// section.settingName.
//
// # Live Reload
//
// WatchFile reloads the file whenever it changes and hands every
// successfully validated result to a callback.
package config
