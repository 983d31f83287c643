// Package secrets resolves credentials referenced from configuration values.
//
// A value is used as-is unless it references a source:
//
//	${MQTT_PASSWORD}            environment variable
//	${MQTT_PASSWORD:-guest}     environment variable with fallback
//	file:/run/secrets/mqtt      file contents, trailing newline trimmed
//
// Resolved values are never logged.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/trapwatch/trapwatch/internal/errors"
)

// FilePrefix marks a value that names a secret file.
const FilePrefix = "file:"

// maxSecretFileSize caps secret file reads; secrets are tokens, not documents.
const maxSecretFileSize = 64 * 1024

// ExpandString expands ${VAR} and ${VAR:-default} references in s. A bare
// $ without braces is kept literally so passwords containing $ survive.
func ExpandString(s string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var (
		sb      strings.Builder
		missing []string
	)
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			sb.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", secretError(errors.Newf("unterminated variable reference"), "expand")
		}
		sb.WriteString(rest[:start])

		key := rest[start+2 : start+end]
		name, fallback, hasFallback := strings.Cut(key, ":-")
		switch value := os.Getenv(name); {
		case value != "":
			sb.WriteString(value)
		case hasFallback:
			sb.WriteString(fallback)
		default:
			missing = append(missing, name)
		}
		rest = rest[start+end+1:]
	}

	if len(missing) > 0 {
		return "", secretError(
			errors.Newf("missing required environment variable(s): %s", strings.Join(missing, ", ")),
			"expand")
	}
	return sb.String(), nil
}

// ReadFile reads a secret file, rejecting non-regular, oversized and empty
// files. Only trailing newlines are trimmed.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", secretError(errors.Newf("secret file path is empty"), "read_file")
	}
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return "", secretError(errors.New(err), "read_file")
	}
	if !info.Mode().IsRegular() {
		return "", secretError(errors.Newf("secret path is not a regular file: %s", clean), "read_file")
	}
	if info.Size() > maxSecretFileSize {
		return "", secretError(errors.Newf("secret file too large (max %d bytes): %s", maxSecretFileSize, clean), "read_file")
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", secretError(errors.New(err), "read_file")
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", secretError(errors.Newf("secret file is empty: %s", clean), "read_file")
	}
	return secret, nil
}

// Resolve returns the secret value referenced by value.
func Resolve(value string) (string, error) {
	if path, ok := strings.CutPrefix(value, FilePrefix); ok {
		return ReadFile(path)
	}
	return ExpandString(value)
}

// ResolveAll resolves every value in place. The field name is reported on
// failure, never the value.
func ResolveAll(fields map[string]*string) error {
	for name, ptr := range fields {
		if ptr == nil || *ptr == "" {
			continue
		}
		resolved, err := Resolve(*ptr)
		if err != nil {
			return errors.New(err).
				Component("secrets").
				Category(errors.CategoryConfiguration).
				Context("field", name).
				Build()
		}
		*ptr = resolved
	}
	return nil
}

func secretError(b *errors.ErrorBuilder, operation string) error {
	return b.Component("secrets").
		Category(errors.CategoryConfiguration).
		Context("operation", operation).
		Build()
}
