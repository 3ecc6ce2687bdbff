package http

import (
	"net/http"

	_ "github.com/artpar/trustmeter/docs" // registers the OpenAPI description
	"github.com/artpar/trustmeter/pkg/jsonapi"
	"github.com/swaggo/swag"
)

// OpenAPISpec serves the registered OpenAPI description.
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrInternal("OpenAPI description unavailable"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write([]byte(doc))
}
