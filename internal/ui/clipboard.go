package ui

import (
	"os"

	"github.com/aymanbagabas/go-osc52/v2"
)

// copyToClipboard puts text on the system clipboard through OSC 52. The
// sequence goes to stderr so it reaches the terminal even while the
// alternate screen owns stdout.
func copyToClipboard(text string) error {
	_, err := osc52.New(text).WriteTo(os.Stderr)
	return err
}
