// Package wakatime publishes external durations to the WakaTime API.
package wakatime
