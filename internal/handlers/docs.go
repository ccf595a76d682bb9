package handlers

import (
	"encoding/json"
	"net/http"
)

func jsonContent(schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

func ref(name string) map[string]string {
	return map[string]string{"$ref": "#/components/schemas/" + name}
}

func errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content":     jsonContent(ref("Error")),
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Energy Forecast API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Energy Forecast API",
			"description": "Solar energy yield estimates per city from hourly weather forecasts and per-region regression models",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8000", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Service health with loaded cities and models",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Service is healthy",
							"content":     jsonContent(ref("Health")),
						},
					},
				},
			},
			"/cities": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List supported cities",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Sorted city names",
							"content":     jsonContent(ref("Cities")),
						},
						"500": errorResponse("City mapping not loaded"),
					},
				},
			},
			"/predict-energy": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Predict solar energy for a city",
					"description": "mode selects the horizon: realtime (1 day), 7day (7 days) or monthly (16 days). Multi-day modes add per-day totals.",
					"requestBody": map[string]interface{}{
						"required": true,
						"content":  jsonContent(ref("PredictionRequest")),
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prediction result",
							"content":     jsonContent(ref("PredictionResult")),
						},
						"400": errorResponse("Invalid body or non-positive area"),
						"404": errorResponse("City not found"),
						"500": errorResponse("Model for the city is not loaded"),
						"502": errorResponse("Weather response missing hourly data"),
						"503": errorResponse("Weather API unavailable"),
					},
				},
			},
			"/api/predictions": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List recorded prediction runs",
					"description": "Available when the database is enabled",
					"parameters": []map[string]interface{}{
						{"name": "city", "in": "query", "required": false, "schema": map[string]string{"type": "string"}},
						{"name": "mode", "in": "query", "required": false, "schema": map[string]string{"type": "string"}},
						{"name": "since", "in": "query", "required": false, "description": "Only runs created at or after this RFC3339 instant", "schema": map[string]string{"type": "string", "format": "date-time"}},
						{"name": "page", "in": "query", "required": false, "schema": map[string]interface{}{"type": "integer", "default": 1}},
						{"name": "limit", "in": "query", "required": false, "schema": map[string]interface{}{"type": "integer", "default": 50}},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Paginated prediction runs",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"data":        map[string]interface{}{"type": "array", "items": ref("PredictionRun")},
									"total":       map[string]string{"type": "integer"},
									"page":        map[string]string{"type": "integer"},
									"limit":       map[string]string{"type": "integer"},
									"total_pages": map[string]string{"type": "integer"},
								},
							}),
						},
						"400": errorResponse("Malformed since parameter"),
					},
				},
			},
			"/api/predictions/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get one prediction run",
					"parameters": []map[string]interface{}{
						{"name": "id", "in": "path", "required": true, "schema": map[string]string{"type": "string", "format": "uuid"}},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prediction run",
							"content":     jsonContent(ref("PredictionRun")),
						},
						"404": errorResponse("Run not found"),
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Health": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"status":           map[string]string{"type": "string"},
						"cities_available": map[string]string{"type": "integer"},
						"models_loaded":    map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
					},
				},
				"Cities": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"count":  map[string]string{"type": "integer"},
						"cities": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
					},
				},
				"PredictionRequest": map[string]interface{}{
					"type":     "object",
					"required": []string{"city", "area"},
					"properties": map[string]interface{}{
						"city":           map[string]string{"type": "string"},
						"area":           map[string]string{"type": "number", "description": "Collector area in m², must be > 0"},
						"efficiency":     map[string]interface{}{"type": "number", "default": 0.18, "minimum": 0, "exclusiveMinimum": true, "maximum": 1},
						"mode":           map[string]interface{}{"type": "string", "enum": []string{"realtime", "7day", "monthly", "wind"}, "default": "realtime"},
						"num_turbines":   map[string]interface{}{"type": "integer", "minimum": 1},
						"rotor_diameter": map[string]interface{}{"type": "number", "minimum": 0, "exclusiveMinimum": true},
					},
				},
				"PredictionResult": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"city":           map[string]string{"type": "string"},
						"lat":            map[string]string{"type": "number"},
						"lon":            map[string]string{"type": "number"},
						"assigned_model": map[string]string{"type": "string"},
						"weather": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"temperature": map[string]string{"type": "number"},
								"wind_speed":  map[string]string{"type": "number"},
								"condition":   map[string]interface{}{"type": "string", "enum": []string{"Clear", "Cloudy"}},
							},
						},
						"energy_per_m2": map[string]string{"type": "number", "description": "kWh/m², 4 decimals"},
						"energy_total":  map[string]string{"type": "number", "description": "kWh, 2 decimals"},
						"forecast_data": map[string]interface{}{
							"type":     "array",
							"nullable": true,
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"day":           map[string]string{"type": "integer"},
									"energy_total":  map[string]string{"type": "number"},
									"energy_per_m2": map[string]string{"type": "number"},
									"timestamp":     map[string]string{"type": "string"},
									"valid_hours":   map[string]string{"type": "integer"},
								},
							},
						},
					},
				},
				"PredictionRun": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":            map[string]string{"type": "string", "format": "uuid"},
						"city":          map[string]string{"type": "string"},
						"mode":          map[string]string{"type": "string"},
						"model":         map[string]string{"type": "string"},
						"area":          map[string]string{"type": "number"},
						"efficiency":    map[string]string{"type": "number"},
						"energy_per_m2": map[string]string{"type": "number"},
						"energy_total":  map[string]string{"type": "number"},
						"forecast_days": map[string]string{"type": "integer"},
						"created_at":    map[string]string{"type": "string", "format": "date-time"},
					},
				},
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":    map[string]string{"type": "string"},
						"message":  map[string]string{"type": "string"},
						"code":     map[string]string{"type": "integer"},
						"category": map[string]string{"type": "string"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
