package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Say It Schedule API",
        "description": "Recurring service appointment scheduling and booking",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Schedules", "description": "Draft generation, repair and lifecycle"},
        {"name": "Holds", "description": "Short-lived slot reservations"},
        {"name": "Bookings", "description": "Session booking and status"}
    ],
    "paths": {
        "/schedules/generate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Generate a draft schedule for one week",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Draft created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"},
                    "412": {"description": "No active staff or clients"}
                }
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedule versions for an org week",
                "parameters": [
                    {"name": "orgId", "in": "query", "type": "string"},
                    {"name": "weekStart", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Fetch a schedule with its sessions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Schedule not found"}
                }
            }
        },
        "/schedules/{id}/repair": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Run bounded repair passes on a draft schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/RepairRequest"}}
                ],
                "responses": {
                    "200": {"description": "Repair result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Schedule is not a draft"},
                    "422": {"description": "Patch rejected"}
                }
            }
        },
        "/schedules/{id}/publish": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Publish a draft schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Schedule not found"}
                }
            }
        },
        "/schedules/{id}/copy": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Clone a schedule into a fresh draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Draft copy created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/export": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Export a schedule as csv or pdf",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Export payload"}
                }
            }
        },
        "/holds": {
            "post": {
                "tags": ["Holds"],
                "summary": "Place a short-lived hold on a slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateHoldRequest"}}
                ],
                "responses": {
                    "201": {"description": "Hold placed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot already held or booked"}
                }
            }
        },
        "/holds/{id}": {
            "get": {
                "tags": ["Holds"],
                "summary": "Fetch a live hold",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Hold missing or expired"}
                }
            },
            "delete": {
                "tags": ["Holds"],
                "summary": "Release a hold before it expires",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Released"},
                    "404": {"description": "Hold missing or expired"}
                }
            }
        },
        "/holds/{id}/extend": {
            "post": {
                "tags": ["Holds"],
                "summary": "Extend a live hold's expiry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExtendHoldRequest"}}
                ],
                "responses": {
                    "200": {"description": "Extended", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Hold missing or expired"}
                }
            }
        },
        "/holds/cleanup": {
            "post": {
                "tags": ["Holds"],
                "summary": "Sweep expired hold rows",
                "responses": {
                    "200": {"description": "Sweep count", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/from-hold": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Convert a live hold into a booked session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookFromHoldRequest"}}
                ],
                "responses": {
                    "201": {"description": "Session booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Hold missing or expired"},
                    "409": {"description": "Slot no longer available"}
                }
            }
        },
        "/bookings/direct": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Book a slot without a hold",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookDirectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Session booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot no longer available"}
                }
            }
        },
        "/sessions/{id}/status": {
            "patch": {
                "tags": ["Bookings"],
                "summary": "Transition a session through its lifecycle",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSessionStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "Status updated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Transition not allowed"}
                }
            }
        }
    },
    "definitions": {
        "GenerateScheduleRequest": {
            "type": "object",
            "required": ["orgId", "weekStart"],
            "properties": {
                "orgId": {"type": "string"},
                "weekStart": {"type": "string", "example": "2026-09-07"}
            }
        },
        "RepairRequest": {
            "type": "object",
            "properties": {
                "violations": {"type": "array", "items": {"type": "object"}},
                "searchSpace": {"type": "object"}
            }
        },
        "CreateHoldRequest": {
            "type": "object",
            "required": ["orgId", "date", "startTime", "endTime"],
            "properties": {
                "orgId": {"type": "string"},
                "staffId": {"type": "string"},
                "roomId": {"type": "string"},
                "date": {"type": "string", "example": "2026-09-08"},
                "startTime": {"type": "string", "example": "10:00"},
                "endTime": {"type": "string", "example": "11:00"},
                "ttlSeconds": {"type": "integer"}
            }
        },
        "ExtendHoldRequest": {
            "type": "object",
            "required": ["minutes"],
            "properties": {
                "minutes": {"type": "integer", "minimum": 1, "maximum": 60}
            }
        },
        "BookFromHoldRequest": {
            "type": "object",
            "required": ["holdId", "clientId"],
            "properties": {
                "holdId": {"type": "string"},
                "clientId": {"type": "string"},
                "scheduleId": {"type": "string"},
                "notes": {"type": "string"},
                "bookedVia": {"type": "string", "enum": ["ADMIN", "STAFF", "PORTAL"]},
                "bookedByContactId": {"type": "string"}
            }
        },
        "BookDirectRequest": {
            "type": "object",
            "required": ["orgId", "staffId", "clientId", "date", "startTime", "endTime"],
            "properties": {
                "orgId": {"type": "string"},
                "staffId": {"type": "string"},
                "clientId": {"type": "string"},
                "roomId": {"type": "string"},
                "scheduleId": {"type": "string"},
                "date": {"type": "string"},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"},
                "notes": {"type": "string"},
                "bookedVia": {"type": "string", "enum": ["ADMIN", "STAFF", "PORTAL"]},
                "bookedByContactId": {"type": "string"}
            }
        },
        "UpdateSessionStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["CONFIRMED", "CHECKED_IN", "IN_PROGRESS", "COMPLETED", "CANCELLED", "NO_SHOW"]},
                "reason": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
