package dispatcher

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// handleOpenAPI serves a minimal, hand-built OpenAPI 3 document. No
// third-party OpenAPI-serving library appears as an actual dependency
// anywhere in the retrieval pack (see DESIGN.md), so this single corner
// is implemented directly on encoding/json.
func (s *Service) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "docker-job-dispatcher",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/job": map[string]any{
				"post": map[string]any{
					"summary": "Create a job",
					"responses": map[string]any{
						"201": map[string]any{"description": "Created"},
						"200": map[string]any{"description": "Pre-existing"},
						"400": map[string]any{"description": "Filter or manifest error"},
						"502": map[string]any{"description": "Engine error"},
					},
				},
			},
			"/job/{id}": map[string]any{
				"get": map[string]any{
					"summary": "Fetch a job",
					"responses": map[string]any{
						"200": map[string]any{"description": "Job summary"},
						"404": map[string]any{"description": "No such job"},
						"502": map[string]any{"description": "Engine error"},
					},
				},
			},
			"/health/live":  map[string]any{"get": map[string]any{"summary": "Liveness probe"}},
			"/health/ready": map[string]any{"get": map[string]any{"summary": "Readiness probe"}},
			"/metrics":      map[string]any{"get": map[string]any{"summary": "OpenMetrics exposition"}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html>
<head>
<title>docker-job-dispatcher API docs</title>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script>
window.onload = function() {
  SwaggerUIBundle({ url: "/openapi.json", dom_id: "#swagger-ui" });
};
</script>
</body>
</html>
`))

// handleDocs serves a minimal HTML page that loads Swagger UI against
// /openapi.json.
func (s *Service) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = docsTemplate.Execute(w, nil)
}
