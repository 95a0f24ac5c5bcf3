// Package docs registers the OpenAPI document served at /docs/doc.json.
// It is maintained by hand alongside the handlers.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "API root info",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/health/db": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Database health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health/cache": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Cache health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/api/v1/admin/engine/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Engine status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/engine.Status"}}}
            }
        },
        "/api/v1/admin/engine/start": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Start engine",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/engine.Status"}}}
            }
        },
        "/api/v1/admin/engine/stop": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Stop engine",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/engine.Status"}}}
            }
        },
        "/api/v1/admin/engine/run": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Run engine cycle",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/engine.CycleReport"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/v1/admin/engine/interval": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["admin"],
                "summary": "Set engine interval",
                "parameters": [{
                    "in": "body",
                    "name": "body",
                    "required": true,
                    "schema": {"type": "object", "properties": {"minutes": {"type": "integer"}}}
                }],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/engine.Status"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/v1/admin/scheduler/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Scheduler status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/notifications.SchedulerStatus"}}}
            }
        },
        "/api/v1/admin/scheduler/start": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Start scheduler",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/notifications.SchedulerStatus"}}}
            }
        },
        "/api/v1/admin/scheduler/stop": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Stop scheduler",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/notifications.SchedulerStatus"}}}
            }
        },
        "/api/v1/admin/scheduler/scan/urgent": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Run urgent scan",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/notifications.ScanResult"}}}
            }
        },
        "/api/v1/admin/scheduler/scan/digest": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Run digest scan",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/notifications.ScanResult"}}}
            }
        },
        "/api/v1/admin/notifications/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Notification stats",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "304": {"description": "Not Modified"}
                }
            }
        }
    },
    "definitions": {
        "engine.CycleReport": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "startedAt": {"type": "string"},
                "durationNs": {"type": "integer"},
                "users": {"type": "integer"},
                "paused": {"type": "integer"},
                "errors": {"type": "integer"},
                "intervalMs": {"type": "integer"}
            }
        },
        "engine.Status": {
            "type": "object",
            "properties": {
                "running": {"type": "boolean"},
                "lastRun": {"type": "string"},
                "intervalMs": {"type": "integer"},
                "nextScheduledRun": {"type": "string"},
                "cycles": {"type": "integer"},
                "lastCycle": {"$ref": "#/definitions/engine.CycleReport"}
            }
        },
        "notifications.ScanResult": {
            "type": "object",
            "properties": {
                "users": {"type": "integer"},
                "sent": {"type": "integer"},
                "skipped": {"type": "integer"},
                "suppressed": {"type": "integer"},
                "failed": {"type": "integer"},
                "durationNs": {"type": "integer"}
            }
        },
        "notifications.ScanRun": {
            "type": "object",
            "properties": {
                "at": {"type": "string"},
                "result": {"$ref": "#/definitions/notifications.ScanResult"}
            }
        },
        "notifications.SchedulerStatus": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "running": {"type": "boolean"},
                "urgentIntervalMs": {"type": "integer"},
                "digestIntervalMs": {"type": "integer"},
                "digestTimes": {"type": "array", "items": {"type": "string"}},
                "dedupeEntries": {"type": "integer"},
                "lastUrgentScan": {"$ref": "#/definitions/notifications.ScanRun"},
                "lastDigestScan": {"$ref": "#/definitions/notifications.ScanRun"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "detail": {"type": "string"}
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Execassist API",
	Description:      "Notification scheduler and autonomous engine administration.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
