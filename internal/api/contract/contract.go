// Package contract embeds the HTTP and event contracts of the sales service.
package contract

import (
	_ "embed"
)

// OpenAPI is the OpenAPI 3 document of the HTTP API
//
//go:embed openapi.yaml
var OpenAPI []byte

// AsyncAPI is the AsyncAPI document of the published sale events
//
//go:embed asyncapi.yaml
var AsyncAPI []byte
