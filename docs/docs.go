// Package docs registers the OpenAPI description served at /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register a customer or venue owner"}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Exchange credentials for a token pair"}},
        "/auth/refresh": {"post": {"tags": ["auth"], "summary": "Rotate an access token"}},
        "/auth/logout": {"post": {"tags": ["auth"], "summary": "Revoke the current access token", "security": [{"BearerAuth": []}]}},
        "/auth/me": {"get": {"tags": ["auth"], "summary": "Current user profile", "security": [{"BearerAuth": []}]}},
        "/venues": {
            "get": {"tags": ["venues"], "summary": "List venues with filters"},
            "post": {"tags": ["venues"], "summary": "Create a venue", "security": [{"BearerAuth": []}]}
        },
        "/venues/{id}": {
            "get": {"tags": ["venues"], "summary": "Get a venue"},
            "put": {"tags": ["venues"], "summary": "Update a venue", "security": [{"BearerAuth": []}]},
            "delete": {"tags": ["venues"], "summary": "Deactivate a venue", "security": [{"BearerAuth": []}]}
        },
        "/venues/{id}/blocked-dates": {"post": {"tags": ["venues"], "summary": "Block dates", "security": [{"BearerAuth": []}]}},
        "/venues/{id}/blocked-dates/{date}": {"delete": {"tags": ["venues"], "summary": "Unblock a date", "security": [{"BearerAuth": []}]}},
        "/owner/venues": {"get": {"tags": ["owner"], "summary": "Venues of the current owner", "security": [{"BearerAuth": []}]}},
        "/owner/bookings": {"get": {"tags": ["owner"], "summary": "Bookings across the owner's venues", "security": [{"BearerAuth": []}]}},
        "/owner/earnings": {"get": {"tags": ["owner"], "summary": "Earnings after refunds and platform fee", "security": [{"BearerAuth": []}]}},
        "/bookings": {"post": {"tags": ["bookings"], "summary": "Create a booking", "security": [{"BearerAuth": []}]}},
        "/bookings/me": {"get": {"tags": ["bookings"], "summary": "My bookings", "security": [{"BearerAuth": []}]}},
        "/bookings/availability/{venueId}": {"get": {"tags": ["bookings"], "summary": "Day availability for a venue"}},
        "/bookings/{id}": {
            "get": {"tags": ["bookings"], "summary": "Get a booking", "security": [{"BearerAuth": []}]},
            "delete": {"tags": ["bookings"], "summary": "Delete a pending booking", "security": [{"BearerAuth": []}]}
        },
        "/bookings/{id}/status": {"patch": {"tags": ["bookings"], "summary": "Change booking or payment status", "security": [{"BearerAuth": []}]}},
        "/bookings/{id}/reschedule": {"patch": {"tags": ["bookings"], "summary": "Move a booking to another slot", "security": [{"BearerAuth": []}]}},
        "/bookings/{id}/refund-estimate": {"get": {"tags": ["bookings"], "summary": "Refund if cancelled now", "security": [{"BearerAuth": []}]}},
        "/payments/initiate": {"post": {"tags": ["payments"], "summary": "Start an eSewa or Khalti checkout", "security": [{"BearerAuth": []}]}},
        "/payments/success": {"get": {"tags": ["payments"], "summary": "Gateway success redirect"}},
        "/payments/failure": {"get": {"tags": ["payments"], "summary": "Gateway failure redirect"}},
        "/payments/{id}": {"get": {"tags": ["payments"], "summary": "Get a payment", "security": [{"BearerAuth": []}]}},
        "/payments/booking/{bookingId}": {"get": {"tags": ["payments"], "summary": "Payments of a booking", "security": [{"BearerAuth": []}]}},
        "/payments/{id}/refund": {"post": {"tags": ["payments"], "summary": "Request a refund", "security": [{"BearerAuth": []}]}},
        "/admin/payments/{id}/reconcile": {"post": {"tags": ["admin"], "summary": "Re-check a payment by reference", "security": [{"BearerAuth": []}]}},
        "/admin/payments/{id}/refund/settle": {"patch": {"tags": ["admin"], "summary": "Mark a refund as paid out", "security": [{"BearerAuth": []}]}},
        "/notifications": {"get": {"tags": ["notifications"], "summary": "Inbox", "security": [{"BearerAuth": []}]}},
        "/notifications/{id}/read": {"patch": {"tags": ["notifications"], "summary": "Mark as read", "security": [{"BearerAuth": []}]}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Venuely API",
	Description:      "Venue discovery, booking and payments for event spaces.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
