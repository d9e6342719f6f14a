// Package viz renders module metadata and trajectories in the terminal.
//
//   - [MetadataTable]: variable of integration, states and variables with units
//   - [Canvas]: Braille-based pixel canvas for phase portraits
//   - [Model]: Bubble Tea program stepping an instance in real time
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Restart from the initial state
//	S     - Swap the portrait axes
//	Tab   - Select the next constant
//	Up/Dn - Scale the selected constant by 5% and restart
package viz
