// Package config loads sleepsync configuration.
//
// Values are layered with koanf: built-in defaults, then an optional TOML
// file, then environment variables. The result is validated before use.
//
// Provider credentials are read from the conventional variables
// (FITBIT_CLIENT_ID, WAKATIME_CLIENT_SECRET, DATABASE_URL, QUEUE_URL and so
// on). Any other key can be set as SLEEPSYNC_<SECTION>_<KEY>, for example
// SLEEPSYNC_SCHEDULER_SCHEDULE or SLEEPSYNC_SYNC_IMPORT_MONTHS.
package config
