// Package ui provides terminal UI components for the automower CLI.
//
// Components are rendered with Lipgloss. One-shot commands (status, query,
// decode) print through a Printer; the watch command runs the Dashboard, a
// Bubble Tea model that polls the mower session.
//
// # Components
//
//   - Header: command banner showing the operation and its target
//   - Result: success, warning or failure box with ordered details
//   - Dashboard: live status with a battery bar, refreshed on an interval
//   - ConfirmOperation: typed confirmation before commands that move the mower
//
// Details are passed as []Field rather than maps so that output order is
// stable.
//
// # Logging Integration
//
// Logging is controlled by the AUTOMOWER_LOG_LEVEL environment variable. When
// it is unset zap logging is silent, so the styled output is not interleaved
// with log lines. Set AUTOMOWER_LOG_FILE to keep logs out of the dashboard.
package ui
