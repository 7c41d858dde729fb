// Package types holds the context keys shared between the CLI commands and
// the root command's setup.
package types

type ContextKey string

// ClientAppKey carries the wired *client.App through the command context.
const ClientAppKey ContextKey = "clientApp"
