// Package hcl provides the concrete HCL implementation of the settings
// loading interface defined in the `config` package. It is responsible for
// file parsing, expression evaluation against the environment, and the
// translation of decoded blocks into `config.Settings`.
package hcl
