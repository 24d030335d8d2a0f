package router

import (
	"fmt"

	"pratham-chat/backend/pkg/validator"
)

// SchemaRoute serves the OpenAPI document requests are validated against
const SchemaRoute = "/api/openapi.yaml"

// AddOpenAPIValidation validates /api/v1 requests against the schema at
// schemaPath and publishes the schema at SchemaRoute.
func (r *Router) AddOpenAPIValidation(schemaPath string) error {
	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		return fmt.Errorf("openapi validation: %w", err)
	}

	r.Engine.Use(v.Middleware())
	r.Engine.StaticFile(SchemaRoute, v.SchemaPath())
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath, "url", SchemaRoute)
	return nil
}
