package swagger

import _ "embed"

// OpenAPI contains the embedded OpenAPI 3 document of the HTTP API.
//
//go:embed openapi.yaml
var OpenAPI []byte
