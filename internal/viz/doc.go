// Package viz provides the terminal views of a landing.
//
// The package implements an interactive TUI using the Bubble Tea framework:
//
//   - [Model]: live view of an MPC run, stepping the loop on every tick
//   - [Canvas]: Braille-based pixel canvas with a metric [Frame]
//   - [Render3D]: perspective wireframe of the landing scene
//   - Preset menu ([RunInteractive]) that solves a reference and goes live
//
// # Key Bindings
//
//	Space - Pause/Resume the closed loop
//	N     - Advance one MPC step
//	V     - Toggle side and 3D view
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
