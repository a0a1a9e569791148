//go:build windows

package ui

import "os/exec"

// openInBrowser opens the given URL with the default handler
func openInBrowser(url string) error {
	return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
}
