// Package config holds trugle's configuration and the loaders that fill it.
//
// Values are layered, lowest precedence first: NewConfig defaults, the
// YAML file (.trugle), the environment (TRUGLE_* variables, optionally read
// from a .env file), and finally command-line flags, which the cmd package
// applies last.
package config
