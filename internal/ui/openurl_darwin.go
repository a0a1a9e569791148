//go:build darwin

package ui

import "os/exec"

// openInBrowser opens the given URL with the default handler
func openInBrowser(url string) error {
	return exec.Command("open", url).Start()
}
