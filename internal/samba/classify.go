package samba

import (
	"fmt"
	"strings"
)

var (
	alreadyExistsMarkers = []string{
		"already exists",
		"already a member",
		"entry_already_exists",
		"ldap error 68",
		"error(68)",
	}

	notFoundMarkers = []string{
		"unable to find",
		"failed to find",
		"not found",
		"no such",
		"does not exist",
		"not a member",
		"ldap error 32",
		"error(32)",
	}
)

// ClassifyResult applies the exit-code policy to a completed command: exit 0
// is success unless samba-tool printed its usage text, anything else maps to
// AlreadyExists, NotFound or UnknownRemoteError.
func ClassifyResult(operation string, res *CommandResult) error {
	if res == nil {
		return NewError(operation, ErrorKindUnknownRemote, "no result", nil)
	}

	if res.ExitCode == 0 {
		if strings.HasPrefix(strings.TrimSpace(res.Stdout), "Usage:") {
			return &Error{
				Operation: operation,
				Kind:      ErrorKindUnknownRemote,
				Message:   "samba-tool did not understand the command",
				Stderr:    res.Stderr,
			}
		}
		return nil
	}

	kind := ErrorKindUnknownRemote
	if !shellFailure(res) {
		text := strings.ToLower(strings.Join(errorLines(res), "\n"))
		switch {
		case containsAny(text, alreadyExistsMarkers):
			kind = ErrorKindAlreadyExists
		case containsAny(text, notFoundMarkers):
			kind = ErrorKindNotFound
		}
	}

	return &Error{
		Operation: operation,
		Kind:      kind,
		Message:   summarizeFailure(res),
		ExitCode:  res.ExitCode,
		Stderr:    res.Stderr,
	}
}

// shellFailure reports output produced by the remote shell or sudo rather than
// samba-tool, such as a missing or non-executable tool.
func shellFailure(res *CommandResult) bool {
	if res.ExitCode == 126 || res.ExitCode == 127 {
		return true
	}
	for _, line := range splitLines(res.Stderr) {
		line = strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(line, "error") {
			continue
		}
		if strings.HasSuffix(line, "command not found") || strings.HasSuffix(line, ": not found") {
			return true
		}
		if strings.HasPrefix(line, "sudo:") {
			return true
		}
	}
	return false
}

// errorLines returns the lines samba-tool itself prints for a failure.
func errorLines(res *CommandResult) []string {
	var out []string
	for _, line := range splitLines(res.Stderr + "\n" + res.Stdout) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR") {
			out = append(out, line)
		}
	}
	return out
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// summarizeFailure picks the most informative single line of output.
func summarizeFailure(res *CommandResult) string {
	var first string
	for _, line := range splitLines(res.Stderr) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR") {
			return line
		}
		if first == "" {
			first = line
		}
	}
	if first != "" {
		return first
	}
	return fmt.Sprintf("exit status %d", res.ExitCode)
}
