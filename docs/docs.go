// Package docs holds the OpenAPI description of the HTTP API. It is kept in
// step with the swag annotations on the handlers in internal/api and served
// by the /swagger route.
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
        "/v1/patch": {
            "post": {
                "description": "Applies inline rules or a named rule set to a workspace file, in order, and writes the result to the source or to out",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Patch"
                ],
                "summary": "Patch one file",
                "parameters": [
                    {
                        "description": "Patch job",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.PatchRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Patch report",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.SuccessResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/domain.PatchReport"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Invalid payload or path outside the workspace",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Source or rule set not found",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    },
                    "422": {
                        "description": "Invalid rules, required rule not satisfied or invalid line range",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/v1/batch": {
            "post": {
                "description": "Runs up to 100 patch jobs concurrently and reports each one in request order",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Patch"
                ],
                "summary": "Patch several files",
                "parameters": [
                    {
                        "description": "Patch jobs",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/api.BatchRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Per-job results",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.SuccessResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.BatchResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Invalid payload",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    },
                    "422": {
                        "description": "No jobs or too many jobs",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/v1/rulesets": {
            "get": {
                "description": "Lists the rule sets discovered under the rules directory, including files that failed to load",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Rule Sets"
                ],
                "summary": "List rule sets",
                "responses": {
                    "200": {
                        "description": "Rule sets",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.SuccessResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.RuleSetListResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Rule sets are not configured",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal server error",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/v1/rulesets/reload": {
            "post": {
                "description": "Rescans the rules directory and returns loader statistics",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Rule Sets"
                ],
                "summary": "Reload rule sets",
                "responses": {
                    "200": {
                        "description": "Loader statistics",
                        "schema": {
                            "$ref": "#/definitions/api.SuccessResponse"
                        }
                    },
                    "404": {
                        "description": "Rule sets are not configured",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/v1/rulesets/{name}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Rule Sets"
                ],
                "summary": "Get a rule set",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Rule set name, may contain slashes",
                        "name": "name",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Rule set",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.SuccessResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.RuleSetResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Rule set not found",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    }
                }
            },
            "put": {
                "description": "Validates the rules, then writes the rule set file atomically",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Rule Sets"
                ],
                "summary": "Create or replace a rule set",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Rule set name, may contain slashes",
                        "name": "name",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Rule set",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/domain.RuleFile"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Stored rule set",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.SuccessResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.RuleSetResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Invalid payload or name",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Rule Sets"
                ],
                "summary": "Delete a rule set",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Rule set name, may contain slashes",
                        "name": "name",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Rule set deleted",
                        "schema": {
                            "$ref": "#/definitions/api.SuccessResponse"
                        }
                    },
                    "404": {
                        "description": "Rule set not found",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/v1/history": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "History"
                ],
                "summary": "Recent patch runs",
                "parameters": [
                    {
                        "type": "integer",
                        "default": 50,
                        "description": "Maximum entries, newest first",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Journal entries",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/api.SuccessResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.HistoryResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Journal is disabled",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    },
                    "422": {
                        "description": "Invalid limit",
                        "schema": {
                            "$ref": "#/definitions/api.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/health": {
            "get": {
                "description": "200 while healthy or degraded, 503 when any component is unhealthy",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "System"
                ],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "Healthy or degraded",
                        "schema": {
                            "$ref": "#/definitions/api.HealthResponse"
                        }
                    },
                    "503": {
                        "description": "Unhealthy",
                        "schema": {
                            "$ref": "#/definitions/api.HealthResponse"
                        }
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "System"
                ],
                "summary": "Component metrics",
                "responses": {
                    "200": {
                        "description": "Component statistics and uptime",
                        "schema": {
                            "$ref": "#/definitions/api.SuccessResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "api.ErrorResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "example": "error"
                },
                "code": {
                    "type": "string",
                    "example": "PATCH_ERROR"
                },
                "message": {
                    "type": "string"
                },
                "details": {},
                "report": {
                    "$ref": "#/definitions/domain.PatchReport"
                }
            }
        },
        "api.SuccessResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "example": "success"
                },
                "data": {}
            }
        },
        "api.BatchRequest": {
            "type": "object",
            "properties": {
                "jobs": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.PatchRequest"
                    }
                }
            },
            "required": [
                "jobs"
            ]
        },
        "api.BatchItem": {
            "type": "object",
            "properties": {
                "index": {
                    "type": "integer"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "success",
                        "error"
                    ]
                },
                "report": {
                    "$ref": "#/definitions/domain.PatchReport"
                },
                "error": {
                    "$ref": "#/definitions/api.ErrorResponse"
                }
            }
        },
        "api.BatchResponse": {
            "type": "object",
            "properties": {
                "results": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/api.BatchItem"
                    }
                },
                "succeeded": {
                    "type": "integer"
                },
                "failed": {
                    "type": "integer"
                }
            }
        },
        "api.RuleSetListResponse": {
            "type": "object",
            "properties": {
                "rulesets": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.RuleSetInfo"
                    }
                },
                "count": {
                    "type": "integer",
                    "example": 3
                }
            }
        },
        "api.RuleSetResponse": {
            "type": "object",
            "properties": {
                "ruleset": {
                    "$ref": "#/definitions/domain.RuleSet"
                }
            }
        },
        "api.HistoryResponse": {
            "type": "object",
            "properties": {
                "entries": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.JournalEntry"
                    }
                },
                "count": {
                    "type": "integer",
                    "example": 10
                }
            }
        },
        "api.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "example": "healthy"
                },
                "timestamp": {
                    "type": "string",
                    "example": "2026-01-01T12:00:00Z"
                },
                "components": {
                    "type": "object",
                    "additionalProperties": {
                        "$ref": "#/definitions/domain.HealthStatus"
                    }
                },
                "uptime": {
                    "type": "string",
                    "example": "1h2m3s"
                }
            }
        },
        "domain.PatchRequest": {
            "type": "object",
            "properties": {
                "source": {
                    "type": "string",
                    "example": "web/index.html"
                },
                "out": {
                    "type": "string"
                },
                "ruleset": {
                    "type": "string"
                },
                "rules": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.PatchRule"
                    }
                },
                "dry_run": {
                    "type": "boolean"
                },
                "diff": {
                    "type": "boolean"
                }
            },
            "required": [
                "source"
            ]
        },
        "domain.PatchRule": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "replace",
                        "insert",
                        "delete_range",
                        "replace_between"
                    ]
                },
                "description": {
                    "type": "string"
                },
                "required": {
                    "type": "boolean"
                },
                "find": {
                    "type": "string"
                },
                "replace": {
                    "type": "string"
                },
                "occurrence": {
                    "type": "string",
                    "enum": [
                        "first",
                        "all"
                    ]
                },
                "anchor": {
                    "$ref": "#/definitions/domain.AnchorSpec"
                },
                "payload": {
                    "type": "string"
                },
                "position": {
                    "type": "string",
                    "enum": [
                        "before",
                        "after"
                    ]
                },
                "indent": {
                    "type": "string",
                    "enum": [
                        "keep",
                        "auto"
                    ]
                },
                "start": {
                    "type": "integer"
                },
                "end": {
                    "type": "integer"
                },
                "start_marker": {
                    "type": "string"
                },
                "end_marker": {
                    "type": "string"
                },
                "unless_contains": {
                    "type": "string"
                },
                "when": {
                    "type": "string"
                }
            },
            "required": [
                "type"
            ]
        },
        "domain.AnchorSpec": {
            "type": "object",
            "properties": {
                "markers": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "seek": {
                    "$ref": "#/definitions/domain.Seek"
                }
            },
            "required": [
                "markers"
            ]
        },
        "domain.Seek": {
            "type": "object",
            "properties": {
                "direction": {
                    "type": "string",
                    "enum": [
                        "backward",
                        "forward"
                    ]
                },
                "match": {
                    "type": "string",
                    "enum": [
                        "blank",
                        "contains"
                    ]
                },
                "token": {
                    "type": "string"
                },
                "window": {
                    "type": "integer",
                    "maximum": 1000,
                    "minimum": 1
                }
            },
            "required": [
                "match"
            ]
        },
        "domain.EditResult": {
            "type": "object",
            "properties": {
                "index": {
                    "type": "integer"
                },
                "rule_id": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "applied",
                        "not_found",
                        "skipped"
                    ]
                },
                "offsets": {
                    "type": "array",
                    "items": {
                        "type": "integer"
                    }
                },
                "lines": {
                    "type": "array",
                    "items": {
                        "type": "integer"
                    }
                },
                "count": {
                    "type": "integer"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "domain.PatchReport": {
            "type": "object",
            "properties": {
                "source": {
                    "type": "string"
                },
                "destination": {
                    "type": "string"
                },
                "ruleset": {
                    "type": "string"
                },
                "results": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.EditResult"
                    }
                },
                "state": {
                    "type": "string",
                    "enum": [
                        "written",
                        "unchanged",
                        "dry_run",
                        "aborted"
                    ]
                },
                "changed": {
                    "type": "boolean"
                },
                "lines_before": {
                    "type": "integer"
                },
                "lines_after": {
                    "type": "integer"
                },
                "diff": {
                    "type": "string"
                },
                "error_code": {
                    "type": "string"
                },
                "duration": {
                    "type": "string"
                },
                "started_at": {
                    "type": "string"
                }
            }
        },
        "domain.RuleSet": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "rules": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.PatchRule"
                    }
                }
            }
        },
        "domain.RuleFile": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "rules": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/domain.PatchRule"
                    }
                }
            },
            "required": [
                "rules"
            ]
        },
        "domain.RuleSetInfo": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "description": {
                    "type": "string"
                },
                "rule_count": {
                    "type": "integer"
                },
                "error": {
                    "type": "string"
                }
            }
        },
        "domain.JournalEntry": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "request_id": {
                    "type": "string"
                },
                "source": {
                    "type": "string"
                },
                "destination": {
                    "type": "string"
                },
                "ruleset": {
                    "type": "string"
                },
                "state": {
                    "type": "string"
                },
                "applied": {
                    "type": "integer"
                },
                "not_found": {
                    "type": "integer"
                },
                "skipped": {
                    "type": "integer"
                },
                "error_code": {
                    "type": "string"
                },
                "duration_ms": {
                    "type": "integer"
                },
                "created_at": {
                    "type": "string"
                }
            }
        },
        "domain.HealthStatus": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "healthy",
                        "degraded",
                        "unhealthy"
                    ]
                },
                "message": {
                    "type": "string"
                },
                "details": {
                    "type": "object"
                },
                "timestamp": {
                    "type": "string"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Source Patcher API",
	Description:      "Applies ordered, marker-based edits to text files inside a workspace",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
