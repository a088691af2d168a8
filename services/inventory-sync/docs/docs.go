// Package docs swagger документ API синхронизации остатков
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/sync/trigger": {
            "post": {
                "tags": ["sync"],
                "summary": "Запросить снапшоты остатков",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/triggerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.TriggerResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/sync/poll": {
            "post": {
                "tags": ["sync"],
                "summary": "Опросить статусы активных задач",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.PollResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/sync/ingest": {
            "post": {
                "tags": ["sync"],
                "summary": "Импортировать файл снапшота",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/services.IngestRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.IngestOutcome"}},
                    "207": {"description": "Multi-Status", "schema": {"$ref": "#/definitions/services.IngestOutcome"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/sync/abort": {
            "post": {
                "tags": ["sync"],
                "summary": "Отменить снапшот",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/abortRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.AbortOutcome"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/sync/jobs": {
            "get": {
                "tags": ["jobs"],
                "summary": "Список задач синхронизации",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "in": "query", "name": "status"},
                    {"type": "integer", "in": "query", "name": "page"},
                    {"type": "integer", "in": "query", "name": "page_size"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response"}}
                }
            }
        },
        "/sync/jobs/{id}": {
            "get": {
                "tags": ["jobs"],
                "summary": "Задача синхронизации",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "in": "path", "name": "id", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "triggerRequest": {
            "type": "object",
            "properties": {"warehouse_id": {"type": "integer"}}
        },
        "abortRequest": {
            "type": "object",
            "properties": {"snapshot_id": {"type": "string"}, "reason": {"type": "string"}}
        },
        "errorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"},
                "code": {"type": "integer"},
                "message": {"type": "string"}
            }
        },
        "response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {"type": "object"},
                "meta": {"type": "object"}
            }
        },
        "services.TriggerResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "total_warehouses": {"type": "integer"},
                "successful": {"type": "integer"},
                "failed": {"type": "integer"},
                "sync_jobs": {"type": "array", "items": {"type": "object"}},
                "results": {"type": "array", "items": {"type": "object"}}
            }
        },
        "services.PollResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "total_checked": {"type": "integer"},
                "completed": {"type": "integer"},
                "still_processing": {"type": "integer"},
                "failed": {"type": "integer"},
                "timed_out": {"type": "integer"},
                "jobs": {"type": "array", "items": {"type": "object"}}
            }
        },
        "services.IngestRequest": {
            "type": "object",
            "properties": {
                "snapshot_url": {"type": "string"},
                "job_id": {"type": "string"},
                "snapshot_id": {"type": "string"}
            }
        },
        "services.IngestOutcome": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "job_id": {"type": "string"},
                "job_status": {"type": "string"},
                "stats": {
                    "type": "object",
                    "properties": {
                        "total_records": {"type": "integer"},
                        "records_written": {"type": "integer"},
                        "batches_processed": {"type": "integer"},
                        "batches_total": {"type": "integer"},
                        "skus_processed": {"type": "integer"},
                        "warnings": {"type": "integer"},
                        "duration_seconds": {"type": "number"}
                    }
                },
                "errors": {"type": "array", "items": {"type": "string"}},
                "warnings": {"type": "array", "items": {"type": "string"}}
            }
        },
        "services.AbortOutcome": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "job_id": {"type": "string"},
                "snapshot_id": {"type": "string"},
                "status": {"type": "string"},
                "note": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo метаданные документа
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Inventory Sync API",
	Description:      "Импорт снапшотов остатков из внешней складской системы",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
