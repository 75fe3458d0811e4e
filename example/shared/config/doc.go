// Package config loads the configuration of the transfer example from environment variables
// and builds the database and broker clients the engines run on.
//
// All variables are prefixed with ESAUCY_, see Config for names and defaults.
package config
