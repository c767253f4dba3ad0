// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the pipeline that takes a document from
// text to a materialized, executed and optionally published sandbox,
// decoupled from any specific entrypoint like a CLI.
package app
