// Package config defines the settings of the sos-responder binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Secrets and the admin policy may come from the environment instead of
// the file: SOS_JWT_SECRET, SOS_ADMIN_EMAILS and SOS_DATABASE_PATH override
// their YAML counterparts after the file is read.
package config
