// Package config loads the mediaflow engine configuration.
//
// Values come from a config.yml (searched under cmd/<service>/, config/ and
// the working directory), an optional .env file and MEDIAFLOW_* environment
// variables, in increasing order of precedence:
//
//	var cfg config.Config
//	if err := config.LoadConfig("mediaflow", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
//
// MEDIAFLOW_SCHEDULER_POOL_SIZE=8 sets scheduler.pool_size.
package config
