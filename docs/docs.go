// Package docs holds the OpenAPI document served at /swagger/*any.
// Regenerate with: swag init -g internal/http/router.go -o docs
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
        "/messages": {
            "get": {
                "description": "Returns ledger records newest first.",
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Message history (paginated)",
                "operationId": "listMessages",
                "parameters": [
                    {"type": "integer", "default": 1, "description": "Page number (>=1)", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Page size (1..100)", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/messages/{sid}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Get one ledger record",
                "operationId": "getMessage",
                "parameters": [
                    {"type": "string", "description": "Transport message id", "name": "sid", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.MessageRecord"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/sales/best-selling": {
            "get": {
                "description": "Returns the current period's items ordered by quantity sold. A stale cache is refreshed first; when that fails the previous period is served.",
                "produces": ["application/json"],
                "tags": ["Sales"],
                "summary": "Best-selling items",
                "operationId": "bestSelling",
                "parameters": [
                    {"type": "string", "description": "Merchant (defaults to the configured one)", "name": "merchant_id", "in": "query"},
                    {"type": "integer", "default": 10, "description": "Max items (1..100)", "name": "limit", "in": "query"},
                    {"type": "string", "example": "Coffee", "description": "Category filter (case-insensitive)", "name": "category", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.BestSellingResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/sales/cache-status": {
            "get": {
                "description": "Reports the cached period, its freshness and the last refresh attempt.",
                "produces": ["application/json"],
                "tags": ["Sales"],
                "summary": "Sales cache status",
                "operationId": "cacheStatus",
                "parameters": [
                    {"type": "string", "description": "Merchant (defaults to the configured one)", "name": "merchant_id", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.CacheStatus"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/sales/refresh": {
            "post": {
                "description": "Rebuilds the cache from the data source now. Concurrent requests share one refresh.",
                "produces": ["application/json"],
                "tags": ["Sales"],
                "summary": "Refresh the sales cache",
                "operationId": "refreshSales",
                "parameters": [
                    {"type": "string", "description": "Merchant (defaults to the configured one)", "name": "merchant_id", "in": "query"},
                    {"type": "integer", "default": 7, "description": "Lookback window in days", "name": "days", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/refresh.Result"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Data source unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/sales/trends": {
            "get": {
                "description": "Summarizes the current period. Uses the text generator when configured and a deterministic summary otherwise.",
                "produces": ["application/json"],
                "tags": ["Sales"],
                "summary": "Sales trend analysis",
                "operationId": "salesTrends",
                "parameters": [
                    {"type": "string", "description": "Merchant (defaults to the configured one)", "name": "merchant_id", "in": "query"},
                    {"type": "string", "description": "Optional focus question", "name": "question", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TrendsResponse"}}
                }
            }
        },
        "/scheduler/refresh": {
            "post": {
                "description": "Runs the scheduled refresh job synchronously and returns the updated job status.",
                "produces": ["application/json"],
                "tags": ["Scheduler"],
                "summary": "Trigger the daily refresh now",
                "operationId": "schedulerRefresh",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/scheduler.JobStatus"}},
                    "404": {"description": "Job not registered", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Refresh failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/scheduler/status": {
            "get": {
                "description": "Lists registered jobs with their trigger, next and last run.",
                "produces": ["application/json"],
                "tags": ["Scheduler"],
                "summary": "Scheduled jobs",
                "operationId": "schedulerStatus",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SchedulerStatusResponse"}}
                }
            }
        },
        "/test/webhook": {
            "post": {
                "description": "Runs the webhook pipeline for a JSON payload and returns the reply. Repeating a message_sid replays the stored reply.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Test"],
                "summary": "Simulate an inbound message",
                "operationId": "testWebhook",
                "parameters": [
                    {"description": "Simulated delivery", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TestWebhookRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.HandleResult"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/whatsapp/send": {
            "post": {
                "description": "Sends a free-form message. Without transport credentials the send is mocked.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["WhatsApp"],
                "summary": "Send a WhatsApp message",
                "operationId": "sendWhatsApp",
                "parameters": [
                    {"description": "Message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SendMessageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/messaging.SendResult"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Transport failure", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/whatsapp/send-sales-report": {
            "post": {
                "description": "Formats a report from the current top items and sends it.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["WhatsApp"],
                "summary": "Send a sales report",
                "operationId": "sendSalesReport",
                "parameters": [
                    {"type": "string", "description": "Merchant (defaults to the configured one)", "name": "merchant_id", "in": "query"},
                    {"description": "Report request", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SendReportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SendReportResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Transport failure", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.CacheEntry": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "id": {"type": "string"},
                "item_id": {"type": "string"},
                "item_name": {"type": "string"},
                "last_updated": {"type": "string"},
                "merchant_id": {"type": "string"},
                "period_end": {"type": "string"},
                "period_start": {"type": "string"},
                "quantity_sold": {"type": "integer"},
                "total_revenue": {"type": "string"}
            }
        },
        "domain.MessageRecord": {
            "type": "object",
            "properties": {
                "body": {"type": "string"},
                "from_number": {"type": "string"},
                "id": {"type": "integer"},
                "message_sid": {"type": "string"},
                "num_media": {"type": "integer"},
                "to_number": {"type": "string"}
            }
        },
        "handlers.BestSellingResponse": {
            "type": "object",
            "properties": {
                "category": {"type": "string", "example": "Coffee"},
                "count": {"type": "integer", "example": 3},
                "items": {"type": "array", "items": {"$ref": "#/definitions/domain.CacheEntry"}},
                "merchant_id": {"type": "string", "example": "MERCHANT_001"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"description": "Stable, machine-readable code (see errors.go constants)", "type": "string", "example": "not_found"},
                "message": {"description": "Human-readable message (safe to show to users)", "type": "string", "example": "message not found"},
                "request_id": {"description": "Correlates server logs and client errors", "type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.ListMessagesResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.MessageRecord"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "has_next": {"type": "boolean"},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "handlers.SchedulerStatusResponse": {
            "type": "object",
            "properties": {
                "jobs": {"type": "array", "items": {"$ref": "#/definitions/scheduler.JobStatus"}},
                "running": {"type": "boolean"}
            }
        },
        "handlers.SendMessageRequest": {
            "type": "object",
            "required": ["to"],
            "properties": {
                "media_url": {"type": "string", "example": "https://example.com/chart.png"},
                "message": {"type": "string", "example": "Your weekly report is ready"},
                "to": {"type": "string", "example": "+15551234567"}
            }
        },
        "handlers.SendReportRequest": {
            "type": "object",
            "required": ["to"],
            "properties": {
                "report_type": {"type": "string", "enum": ["sales_summary", "best_selling", "revenue_report"], "example": "sales_summary"},
                "to": {"type": "string", "example": "+15551234567"}
            }
        },
        "handlers.SendReportResponse": {
            "type": "object",
            "properties": {
                "from": {"type": "string"},
                "message_sid": {"type": "string"},
                "mock": {"type": "boolean"},
                "report_type": {"type": "string"},
                "status": {"type": "string"},
                "text": {"type": "string"},
                "to": {"type": "string"}
            }
        },
        "handlers.TestWebhookRequest": {
            "type": "object",
            "properties": {
                "from": {"type": "string", "example": "whatsapp:+1234567890"},
                "message": {"type": "string", "example": "What is my best-selling drink this week?"},
                "message_sid": {"description": "MessageSID is synthesized when empty.", "type": "string", "example": "SM_TEST_001"}
            }
        },
        "handlers.TrendsResponse": {
            "type": "object",
            "properties": {
                "analysis": {"type": "string"},
                "merchant_id": {"type": "string", "example": "MERCHANT_001"},
                "question": {"type": "string", "example": "How are pastries doing?"}
            }
        },
        "messaging.SendResult": {
            "type": "object",
            "properties": {
                "from": {"type": "string"},
                "message_sid": {"type": "string"},
                "mock": {"type": "boolean"},
                "status": {"type": "string"},
                "to": {"type": "string"}
            }
        },
        "refresh.Result": {
            "type": "object",
            "properties": {
                "duration_ns": {"type": "integer"},
                "items_updated": {"type": "integer"},
                "merchant_id": {"type": "string"},
                "orders_processed": {"type": "integer"},
                "period_end": {"type": "string"},
                "period_start": {"type": "string"},
                "shared": {"type": "boolean"}
            }
        },
        "scheduler.JobStatus": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "last_error": {"type": "string"},
                "last_run": {"type": "string"},
                "next_run": {"type": "string"},
                "runs": {"type": "integer"},
                "trigger": {"type": "string"}
            }
        },
        "services.CacheStatus": {
            "type": "object",
            "properties": {
                "fresh": {"type": "boolean"},
                "fresh_for": {"type": "string"},
                "merchant_id": {"type": "string"}
            }
        },
        "services.HandleResult": {
            "type": "object",
            "properties": {
                "intent": {"type": "string"},
                "message_sid": {"type": "string"},
                "replayed": {"type": "boolean"},
                "reply": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Sales Assistant API",
	Description:      "WhatsApp sales assistant: Twilio webhooks, sales cache and admin endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
