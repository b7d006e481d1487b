package config

// Version is set at build time with -ldflags "-X menlo.ai/analytics-gateway/config.Version=...".
var Version = "dev"
