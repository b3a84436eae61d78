// Package terminal emulates the screen of a process running on a
// pseudo-terminal.
//
// A Buffer owns a cell grid and an escape sequence parser. Output read from
// the PTY master is applied with Buffer.Write and rendered from
// Buffer.Snapshot. Resizing goes through Buffer.Resize, which updates the
// PTY window size and the grid under the same lock.
//
// # Emulation
//
// The parser covers what development tooling commonly emits:
//
//   - C0 controls (BS, HT, LF, CR)
//   - CSI cursor movement, erase, insert and delete, scroll regions
//   - SGR bold, italic, underline and colors
//   - DEC private modes for wrap, origin, cursor visibility and the
//     alternate screen
//   - OSC window titles
//
// Colors are limited to the 16-entry ANSI palette. 256-color and RGB
// requests are quantized to the nearest palette entry.
package terminal
