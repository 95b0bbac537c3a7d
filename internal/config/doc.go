// Package config loads warpq's TOML configuration and the separately
// persisted user network policy.
//
// Both files live in the config directory, which defaults to
// os.UserConfigDir()/warpq and can be moved with the WARPQ_CONFIG_DIR
// environment variable. Missing files yield defaults. Values are applied
// over Default, normalized and then validated.
package config
