// Package common provides the types and constants shared by the warpq
// daemon and its JSON-RPC clients.
package common

// Environment variable names for configuration.
const (
	// ConfigDirEnv overrides the configuration directory.
	ConfigDirEnv = "WARPQ_CONFIG_DIR"

	// RPCSecretEnv overrides the RPC bearer token on both ends.
	RPCSecretEnv = "WARPQ_RPC_SECRET"

	// RPCURLEnv points the CLI at a daemon listening elsewhere.
	RPCURLEnv = "WARPQ_RPC_URL"

	// DebugEnv enables verbose client logging.
	DebugEnv = "WARPQ_DEBUG"
)
