package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the publish API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>publishflow - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "publishflow", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "parameters": {
      "list": { "name": "list", "in": "path", "required": true, "schema": { "type": "string" }, "description": "list key or URL path" },
      "id": { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/lists": {
      "get": { "summary": "Registered lists and their fields", "responses": { "200": { "description": "lists" } } }
    },
    "/api/lists/{list}/documents": {
      "parameters": [ { "$ref": "#/components/parameters/list" } ],
      "get": { "summary": "List documents", "parameters": [ { "name": "status", "in": "query", "schema": { "type": "string", "enum": ["unpublished", "published", "draft"] } } ], "responses": { "200": { "description": "documents" }, "400": { "description": "invalid status" }, "404": { "description": "unknown list" } } },
      "post": { "summary": "Create a document", "requestBody": { "content": { "application/json": { "schema": { "type": "object" } } } }, "responses": { "201": { "description": "created" }, "400": { "description": "unknown or invalid field" }, "403": { "description": "list is nocreate" } } }
    },
    "/api/lists/{list}/documents/{id}": {
      "parameters": [ { "$ref": "#/components/parameters/list" }, { "$ref": "#/components/parameters/id" } ],
      "get": { "summary": "Get a document", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Update and save a document", "parameters": [ { "name": "sameStatus", "in": "query", "schema": { "type": "boolean" } } ], "requestBody": { "content": { "application/json": { "schema": { "type": "object" } } } }, "responses": { "200": { "description": "saved" }, "403": { "description": "list is noedit" }, "502": { "description": "There was an error saving. Please try again." } } },
      "delete": { "summary": "Delete a document", "responses": { "204": { "description": "deleted" }, "403": { "description": "list is nodelete" } } }
    },
    "/api/lists/{list}/documents/{id}/publish": {
      "parameters": [ { "$ref": "#/components/parameters/list" }, { "$ref": "#/components/parameters/id" } ],
      "post": { "summary": "Publish to the live database", "responses": { "200": { "description": "published" }, "409": { "description": "document is locked" } } }
    },
    "/api/lists/{list}/documents/{id}/unpublish": {
      "parameters": [ { "$ref": "#/components/parameters/list" }, { "$ref": "#/components/parameters/id" } ],
      "post": { "summary": "Remove the live copy", "responses": { "200": { "description": "unpublished" } } }
    },
    "/api/lists/{list}/documents/{id}/rollback": {
      "parameters": [ { "$ref": "#/components/parameters/list" }, { "$ref": "#/components/parameters/id" } ],
      "post": { "summary": "Overwrite the draft with the live copy", "responses": { "200": { "description": "rolled back" }, "409": { "description": "no live version" } } }
    },
    "/api/lists/{list}/documents/{id}/live": {
      "parameters": [ { "$ref": "#/components/parameters/list" }, { "$ref": "#/components/parameters/id" } ],
      "get": { "summary": "Get the live copy", "responses": { "200": { "description": "live document" }, "404": { "description": "not published" } } }
    },
    "/api/lists/{list}/documents/{id}/diff": {
      "parameters": [ { "$ref": "#/components/parameters/list" }, { "$ref": "#/components/parameters/id" } ],
      "get": { "summary": "Whether the draft differs from live", "responses": { "200": { "description": "{\"differs\": bool}" }, "404": { "description": "not published" } } }
    },
    "/api/lists/{list}/documents/{id}/snapshots": {
      "parameters": [ { "$ref": "#/components/parameters/list" }, { "$ref": "#/components/parameters/id" } ],
      "get": { "summary": "Archived published versions with presigned download URLs", "responses": { "200": { "description": "{\"snapshots\": [{name, key, url}]}" }, "404": { "description": "unknown document or archive disabled" } } }
    },
    "/api/lists/{list}/documents/{id}/snapshots/{name}": {
      "parameters": [ { "$ref": "#/components/parameters/list" }, { "$ref": "#/components/parameters/id" }, { "name": "name", "in": "path", "required": true, "schema": { "type": "string" } } ],
      "get": { "summary": "One archived version as extended JSON", "responses": { "200": { "description": "snapshot" }, "404": { "description": "not found" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
