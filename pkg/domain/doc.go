// Package domain holds the shared types of a hub cycle run: controller status
// codes and modes, poses, agent snapshots, lifecycle events and the cycle report.
package domain
