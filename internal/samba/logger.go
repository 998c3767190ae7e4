package samba

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Subsystem is the tflog subsystem used by this package.
const Subsystem = "samba"

// LogOperation logs an operation with timing.
func LogOperation(ctx context.Context, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation

	tflog.SubsystemDebug(ctx, Subsystem, "Starting operation", SanitizeFields(fields))

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		fields["error_kind"] = string(KindOf(err))
		tflog.SubsystemError(ctx, Subsystem, "Operation failed", SanitizeFields(fields))
	} else {
		tflog.SubsystemDebug(ctx, Subsystem, "Operation completed successfully", SanitizeFields(fields))
	}

	return err
}

// LogCommand logs a completed remote command. Arguments must already be redacted.
func LogCommand(ctx context.Context, args []string, result *CommandResult, err error) {
	fields := map[string]any{
		"command": strings.Join(args, " "),
	}

	if result != nil {
		fields["exit_code"] = result.ExitCode
		fields["duration_ms"] = result.Duration.Milliseconds()
		fields["stdout_bytes"] = len(result.Stdout)
		if result.Stderr != "" {
			fields["stderr"] = result.Stderr
		}
	}

	switch {
	case err != nil:
		fields["error"] = err.Error()
		tflog.SubsystemWarn(ctx, Subsystem, "Remote command failed", fields)
	case result != nil && result.Duration > 10*time.Second:
		tflog.SubsystemInfo(ctx, Subsystem, "Slow remote command", fields)
	default:
		tflog.SubsystemDebug(ctx, Subsystem, "Remote command completed", fields)
	}
}

// LogConnectionEvent logs session lifecycle events.
func LogConnectionEvent(ctx context.Context, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event

	switch event {
	case "session_established", "host_key_recorded":
		tflog.SubsystemInfo(ctx, Subsystem, "Connection event", fields)
	case "connection_failed", "authentication_failed", "host_key_rejected", "session_lost":
		tflog.SubsystemError(ctx, Subsystem, "Connection event", fields)
	default:
		tflog.SubsystemDebug(ctx, Subsystem, "Connection event", fields)
	}
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	sensitiveKeys := map[string]bool{
		"password":     true,
		"new_password": true,
		"passphrase":   true,
		"secret":       true,
		"private_key":  true,
		"credential":   true,
		"credentials":  true,
	}

	for k, v := range fields {
		if sensitiveKeys[k] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

func containsSensitivePattern(s string) bool {
	patterns := []string{
		"password=",
		"newpassword=",
		"passwd=",
		"secret=",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) && !strings.Contains(lower, "=[redacted]") {
			return true
		}
	}

	return false
}

// LogResourceOperation provides standardized entry/exit logging for Terraform resource operations.
func LogResourceOperation(ctx context.Context, resource, operation string, fields map[string]any) func(error) {
	return logSurfaceOperation(ctx, "resource", resource, operation, fields)
}

// LogDataSourceOperation provides standardized entry/exit logging for Terraform data source operations.
func LogDataSourceOperation(ctx context.Context, dataSource, operation string, fields map[string]any) func(error) {
	return logSurfaceOperation(ctx, "data_source", dataSource, operation, fields)
}

func logSurfaceOperation(ctx context.Context, kind, name, operation string, fields map[string]any) func(error) {
	start := time.Now()

	entryFields := make(map[string]any, len(fields)+2)
	maps.Copy(entryFields, fields)
	entryFields[kind] = name
	entryFields["operation"] = operation

	tflog.SubsystemDebug(ctx, "provider", "Starting "+strings.ReplaceAll(kind, "_", " ")+" operation", entryFields)

	return func(err error) {
		exitFields := make(map[string]any, len(fields)+5)
		maps.Copy(exitFields, fields)
		exitFields[kind] = name
		exitFields["operation"] = operation
		exitFields["duration_ms"] = time.Since(start).Milliseconds()
		exitFields["has_error"] = err != nil

		if err != nil {
			exitFields["error"] = err.Error()
			exitFields["error_kind"] = string(KindOf(err))
			tflog.SubsystemError(ctx, "provider", "Operation failed", exitFields)
		} else {
			tflog.SubsystemDebug(ctx, "provider", "Operation completed", exitFields)
		}
	}
}
