package fetcher

import (
	"os/exec"

	"github.com/jmylchreest/newsbridge/internal/logger"
)

// Chrome/Chromium binary names and install locations, in lookup order.
var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath returns override if it is executable, otherwise the first
// browser found on PATH or in a common install location. It returns ""
// when nothing is found and chromedp's own lookup has to do.
func FindChromePath(override string) string {
	if override != "" {
		if path, err := exec.LookPath(override); err == nil {
			return path
		}
		logger.Warn("configured chrome path is not executable, searching", "path", override)
	}
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "name", name, "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found, dynamic fetch may not work")
	return ""
}
