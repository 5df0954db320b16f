// Package app assembles sleepsync from configuration: it opens the stores,
// builds the provider clients and core services, and runs the daemon's
// supervised services.
package app
