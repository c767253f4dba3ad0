// Package config defines the format-agnostic settings model for the
// application, along with the Loader interface for reading settings from
// configuration files and the single boundary step that translates the
// process environment into settings.
//
// The `config.Settings` value is the only configuration channel into the
// `sandbox`, `runner`, `tester`, `deps` and `registry` packages. Concrete
// file formats, such as HCL, are provided in separate packages.
package config
