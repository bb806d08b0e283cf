// Package docs holds the OpenAPI document served at /swagger/*.
// Regenerate with `make swagger-gen` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/availability": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Model availability",
                "parameters": [
                    {"type": "string", "description": "Model id", "name": "model", "in": "query"},
                    {"type": "string", "description": "Comma-separated content types", "name": "expected_inputs", "in": "query"},
                    {"type": "number", "description": "Sampling temperature", "name": "temperature", "in": "query"},
                    {"type": "integer", "description": "Top-K", "name": "top_k", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AvailabilityResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}
                }
            }
        },
        "/models/{id}/unload": {
            "post": {
                "tags": ["models"],
                "summary": "Unload a model",
                "description": "Drains in-flight work and releases the loaded runtime. Sessions stay valid; the next prompt reloads the model.",
                "parameters": [{"type": "string", "description": "Model id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/params": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Sampling bounds",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SamplingParams"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "List sessions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SessionsResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json", "application/x-ndjson"],
                "tags": ["sessions"],
                "summary": "Create a session",
                "parameters": [
                    {"type": "boolean", "description": "Stream download progress", "name": "monitor", "in": "query"},
                    {"description": "Session options", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/types.CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/types.SessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get a session",
                "parameters": [{"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SessionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["sessions"],
                "summary": "Destroy a session",
                "parameters": [{"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/sessions/{id}/prompt": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json", "application/x-ndjson"],
                "tags": ["sessions"],
                "summary": "Prompt a session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true},
                    {"description": "Prompt", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.PromptRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.PromptResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "410": {"description": "Gone", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/sessions/{id}/append": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Append to a session",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true},
                    {"description": "Input", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.AppendRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/sessions/{id}/clone": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Clone a session",
                "parameters": [{"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/types.SessionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "410": {"description": "Gone", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/sessions/{id}/measure": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Measure input usage",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true},
                    {"description": "Input", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.PromptRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.MeasureResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Server status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.AppendRequest": {
            "type": "object",
            "properties": {"input": {"type": "object"}}
        },
        "types.AvailabilityResponse": {
            "type": "object",
            "properties": {
                "availability": {"type": "string", "example": "available"},
                "model": {"type": "string", "example": "gemma-nano"}
            }
        },
        "types.CreateSessionRequest": {
            "type": "object",
            "properties": {
                "expected_inputs": {"type": "array", "items": {"type": "string"}, "example": ["image"]},
                "initial_prompts": {"type": "array", "items": {"type": "object"}},
                "model": {"type": "string", "example": "gemma-nano"},
                "temperature": {"type": "number", "example": 0.8},
                "top_k": {"type": "integer", "example": 5}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"},
                "kind": {"type": "string", "example": "invalid_argument"}
            }
        },
        "types.MeasureResponse": {
            "type": "object",
            "properties": {"tokens": {"type": "integer", "example": 17}}
        },
        "types.ModelStatus": {
            "type": "object",
            "properties": {
                "availability": {"type": "string", "example": "available"},
                "download_progress": {"type": "number", "example": 0.25},
                "family": {"type": "string", "example": "gemma"},
                "id": {"type": "string", "example": "gemma-nano"},
                "inflight": {"type": "integer", "example": 1},
                "inputs": {"type": "array", "items": {"type": "string"}},
                "last_used_unix": {"type": "integer", "example": 1700000000},
                "loaded": {"type": "boolean", "example": true},
                "max_queue_depth": {"type": "integer", "example": 32},
                "name": {"type": "string", "example": "Gemma Nano (Q4)"},
                "path": {"type": "string", "example": "/home/user/models/gemma-nano.gguf"},
                "quant": {"type": "string", "example": "Q4_K_M"},
                "queue_len": {"type": "integer", "example": 0},
                "source": {"type": "string", "example": "https://models.example.com/gemma-nano.gguf"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {"models": {"type": "array", "items": {"$ref": "#/definitions/types.ModelStatus"}}}
        },
        "types.PromptRequest": {
            "type": "object",
            "properties": {
                "input": {"type": "object"},
                "omit_response_constraint_input": {"type": "boolean"},
                "response_constraint": {"type": "object"},
                "stream": {"type": "boolean", "example": true}
            }
        },
        "types.PromptResponse": {
            "type": "object",
            "properties": {
                "completion": {"type": "string", "example": "Hello! How can I help?"},
                "input_quota": {"type": "integer", "example": 6144},
                "input_usage": {"type": "integer", "example": 42}
            }
        },
        "types.SamplingParams": {
            "type": "object",
            "properties": {
                "default_temperature": {"type": "number", "example": 1},
                "default_top_k": {"type": "integer", "example": 3},
                "max_temperature": {"type": "number", "example": 2},
                "max_top_k": {"type": "integer", "example": 128}
            }
        },
        "types.SessionResponse": {
            "type": "object",
            "properties": {
                "created_unix": {"type": "integer", "example": 1700000000},
                "expected_inputs": {"type": "array", "items": {"type": "string"}},
                "id": {"type": "string", "example": "0b7c6a52-4d59-4a57-9ad1-0f6e2b1c9a1e"},
                "input_quota": {"type": "integer", "example": 6144},
                "input_usage": {"type": "integer", "example": 42},
                "model": {"type": "string", "example": "gemma-nano"},
                "temperature": {"type": "number", "example": 0.8},
                "top_k": {"type": "integer", "example": 5}
            }
        },
        "types.SessionsResponse": {
            "type": "object",
            "properties": {"sessions": {"type": "array", "items": {"$ref": "#/definitions/types.SessionResponse"}}}
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "backend": {"type": "string", "example": "echo"},
                "downloads_total": {"type": "integer", "example": 1},
                "last_error": {"type": "string"},
                "loads_total": {"type": "integer", "example": 12},
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.ModelStatus"}},
                "server_time_unix": {"type": "integer", "example": 1700000000},
                "sessions": {"type": "integer", "example": 3},
                "uptime_seconds": {"type": "integer", "example": 3600}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "lmhost API",
	Description:      "HTTP API for language model sessions: prompt, stream, append, clone and quota accounting.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
