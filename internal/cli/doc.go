// Package cli implements the sitepush command-line interface.
//
// The root command is the deploy itself:
//
//	sitepush --host deploy@web1 --remote-path /var/www/site
//
// Options come from flags, SITEPUSH_* environment variables and an optional
// .sitepush.yaml, in that order of precedence. The merged configuration is
// validated before any command runs, so a bad invocation never builds,
// dials, or syncs anything.
//
// # Exit Codes
//
//	0    success, help, or a completed dry run
//	1    the deploy failed
//	2    usage error (bad or missing options)
//	130  interrupted
//
// # Subcommands
//
//	sitepush init     - write .sitepush.yaml (interactive on a terminal)
//	sitepush version  - print build and rsync version information
package cli
