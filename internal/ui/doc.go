// Package ui implements the terminal user interface for qrlens using
// Bubbletea. It binds the core controller to the event loop: a header
// with permission and session badges, a live viewfinder, the scan
// history panel, and overlays for camera selection and help.
package ui
