// Package config provides user configuration management for the automower
// tools.
//
// This package manages a YAML-based configuration file that stores the mowers
// we have talked to, application preferences and request command ids. The
// configuration follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
//   - $AUTOMOWER_CONFIG_DIR/config.yaml when the variable is set
//   - Linux, macOS: $XDG_CONFIG_HOME/automower/config.yaml or $HOME/.config/automower/config.yaml
//   - Windows: %AppData%\automower\config.yaml
//
// # Command Ids
//
// Only some request command ids have been captured from real controllers.
// The rest can be supplied per response kind:
//
//	commands:
//	  battery-level: "0a1014"
//
// # Security
//
// The operator PIN is NEVER stored. The mow and park commands read it from
// AUTOMOWER_PIN or prompt for it without echo.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry.SetMowerNickname("AA:BB:CC:DD:EE:FF", "Back garden")
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
