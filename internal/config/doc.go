// Package config loads process-wide settings from environment variables and
// builds the structured logger. Settings are resolved once at startup.
package config
