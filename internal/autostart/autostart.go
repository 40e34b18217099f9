// Package autostart registers the BioClear server to start at login
package autostart

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	appName        = "bioclear"
	appDisplayName = "BioClear"

	// OS constants
	osLinux   = "linux"
	osWindows = "windows"
	osDarwin  = "darwin"
)

// Entry is the command registered to run at login
type Entry struct {
	Command string
	Args    []string
}

// ServerEntry returns an entry that runs `serve` from the current executable
func ServerEntry() (Entry, error) {
	execPath, err := os.Executable()
	if err != nil {
		return Entry{}, err
	}
	return Entry{Command: execPath, Args: []string{"serve"}}, nil
}

// commandLine joins the command and arguments, quoting parts with spaces
func (e Entry) commandLine() string {
	parts := make([]string, 0, len(e.Args)+1)
	for _, p := range append([]string{e.Command}, e.Args...) {
		if strings.ContainsAny(p, " \t") {
			p = `"` + p + `"`
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// desktopFile renders an XDG autostart entry
func (e Entry) desktopFile() string {
	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=%s
Exec=%s
Comment=Drug clearance simulation server
Categories=Utility;
Terminal=false
StartupNotify=false
X-GNOME-Autostart-enabled=true
`, appDisplayName, e.commandLine())
}

// launchAgent renders a macOS LaunchAgent plist
func (e Entry) launchAgent() string {
	var args strings.Builder
	for _, p := range append([]string{e.Command}, e.Args...) {
		var esc bytes.Buffer
		_ = xml.EscapeText(&esc, []byte(p))
		fmt.Fprintf(&args, "        <string>%s</string>\n", esc.String())
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.%s</string>
    <key>ProgramArguments</key>
    <array>
%s    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`, appName, args.String())
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() (bool, error) {
	switch runtime.GOOS {
	case osLinux:
		return fileExists(linuxAutostartPath)
	case osWindows:
		return isEnabledWindows()
	case osDarwin:
		return fileExists(macOSLaunchAgentPath)
	default:
		return false, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Enable registers e to run at login
func Enable(e Entry) error {
	switch runtime.GOOS {
	case osLinux:
		return writeEntry(linuxAutostartPath, e.desktopFile())
	case osWindows:
		return enableWindows(e)
	case osDarwin:
		return writeEntry(macOSLaunchAgentPath, e.launchAgent())
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable removes the login entry. Removing a missing entry is not an error.
func Disable() error {
	switch runtime.GOOS {
	case osLinux:
		return removeEntry(linuxAutostartPath)
	case osWindows:
		return disableWindows()
	case osDarwin:
		path, err := macOSLaunchAgentPath()
		if err != nil {
			return err
		}
		// Unload the agent first (ignore errors as the file may not be loaded)
		//nolint:gosec // G204: path comes from macOSLaunchAgentPath(), not user input
		_ = exec.Command("launchctl", "unload", path).Run()
		return removeEntry(macOSLaunchAgentPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func linuxAutostartPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "autostart", appName+".desktop"), nil
}

func macOSLaunchAgentPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", "com."+appName+".plist"), nil
}

func fileExists(pathFn func() (string, error)) (bool, error) {
	path, err := pathFn()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	return err == nil, nil
}

func writeEntry(pathFn func() (string, error), content string) error {
	path, err := pathFn()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0600)
}

func removeEntry(pathFn func() (string, error)) error {
	path, err := pathFn()
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

const windowsRunKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

func isEnabledWindows() (bool, error) {
	err := exec.Command("reg", "query", windowsRunKey, "/v", appName).Run()
	return err == nil, nil
}

func enableWindows(e Entry) error {
	//nolint:gosec // G204: the command line is built from os.Executable()
	return exec.Command("reg", "add", windowsRunKey,
		"/v", appName,
		"/t", "REG_SZ",
		"/d", e.commandLine(),
		"/f").Run()
}

func disableWindows() error {
	err := exec.Command("reg", "delete", windowsRunKey, "/v", appName, "/f").Run()
	if err != nil && strings.Contains(err.Error(), "not exist") {
		return nil
	}
	return err
}
