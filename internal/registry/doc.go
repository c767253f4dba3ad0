// Package registry provides the central "glue" for the publish backends.
//
// Each backend lives in its own package under modules/ and contributes one or
// more publishers through the Module interface. The registry maps a publish
// target name (e.g. "pypi") to the publisher that serves it and is validated
// at startup so that every target a document may name has a backend.
package registry
