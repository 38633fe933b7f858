// Command tablerizer exports PostgreSQL permissions, row level security
// policies, triggers, constraints and comments as idempotent SQL files.
//
// Commands:
//   - export: write one script per table and per function
//   - doctor: check that an export can run
//   - init: create a .tablerizerrc
//   - config show: print the effective configuration
//   - version: print build information
//
// Usage:
//
//	tablerizer [flags] <command>
//
// Database settings come from --db, the discrete connection flags,
// TABLERIZER_DATABASE_URL, DATABASE_URL, the config file or the PG*
// environment variables, in that order.
package main

func main() {
	Execute()
}
