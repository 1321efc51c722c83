// Package util holds small helpers for building remote shell commands.
package util

import (
	"path"
	"strings"
)

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
func ShellQuote(s string) string {
	// ' becomes '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// ShellQuotePreserveTilde quotes a remote path while leaving a leading ~/
// unquoted so the remote shell still expands it to the login user's home.
func ShellQuotePreserveTilde(p string) string {
	if strings.HasPrefix(p, "~/") {
		return "~/" + ShellQuote(p[2:])
	}
	if p == "~" {
		return "~"
	}
	return ShellQuote(p)
}

// RemoteJoin joins remote path elements with forward slashes regardless of the
// local OS, keeping a leading ~ intact.
func RemoteJoin(elem ...string) string {
	return path.Join(elem...)
}

// TrailingSlash returns p with exactly one trailing slash. rsync treats
// "dir/" as "the contents of dir" rather than the directory itself.
func TrailingSlash(p string) string {
	return strings.TrimRight(p, "/") + "/"
}

// Pluralize returns singular if count is 1, otherwise plural.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
