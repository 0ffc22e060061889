// Package docs registers the OpenAPI description of the deals API with swag.
// It is regenerated from the handler annotations with
//
//	swag init -g cmd/server/main.go -o docs
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
        "/deals": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Deals"],
                "summary": "List deals",
                "operationId": "listDeals",
                "parameters": [
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"enum": ["recent", "likes"], "type": "string", "default": "recent", "description": "Sort order", "name": "sortBy", "in": "query"},
                    {"maximum": 1000, "minimum": 1, "type": "integer", "default": 100, "description": "Maximum deals returned", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Deal"}}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Unknown sort order", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Store unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Deals"],
                "summary": "Create a deal",
                "operationId": "createDeal",
                "parameters": [
                    {"description": "Deal payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.DealInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Deal"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/deals/{id}": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Deals"],
                "summary": "Replace a deal",
                "operationId": "updateDeal",
                "parameters": [
                    {"type": "integer", "description": "Deal ID", "name": "id", "in": "path", "required": true},
                    {"description": "Deal payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.DealInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Deal"}},
                    "404": {"description": "Deal not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["Deals"],
                "summary": "Delete a deal",
                "operationId": "deleteDeal",
                "parameters": [
                    {"type": "integer", "description": "Deal ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Deal not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/deal/{ref}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Deals"],
                "summary": "Deal detail",
                "operationId": "getDeal",
                "parameters": [
                    {"type": "string", "description": "Deal slug", "name": "ref", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.DealDetail"}},
                    "404": {"description": "Deal not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/deal/{ref}/related": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Related"],
                "summary": "Related deals",
                "operationId": "relatedDeals",
                "parameters": [
                    {"type": "string", "description": "Source deal slug", "name": "ref", "in": "path", "required": true},
                    {"type": "string", "description": "Comma-separated deal ids already shown", "name": "exclude", "in": "query"},
                    {"maximum": 50, "minimum": 1, "type": "integer", "description": "Page size (max 50)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/repo.RelatedDeal"}}},
                    "404": {"description": "Source deal not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/deal/{ref}/like": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Likes"],
                "summary": "Like a deal",
                "operationId": "likeDeal",
                "parameters": [
                    {"type": "string", "description": "Deal id or slug", "name": "ref", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LikesResponse"}},
                    "404": {"description": "Deal not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/deal/{ref}/unlike": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Likes"],
                "summary": "Unlike a deal",
                "operationId": "unlikeDeal",
                "parameters": [
                    {"type": "string", "description": "Deal id or slug", "name": "ref", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LikesResponse"}},
                    "404": {"description": "Deal not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/related-like": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Related"],
                "summary": "Like a related deal in context",
                "operationId": "relatedLike",
                "parameters": [
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Deal pair", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.PairInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LikesResponse"}, "headers": {"Idempotency-Replayed": {"type": "string", "description": "true when the like was not counted again"}}},
                    "400": {"description": "Invalid pair", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/related-unlike": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Related"],
                "summary": "Remove a contextual like",
                "operationId": "relatedUnlike",
                "parameters": [
                    {"description": "Deal pair", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.PairInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LikesResponse"}},
                    "400": {"description": "Invalid pair", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/search": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Deals"],
                "summary": "Search deals",
                "operationId": "searchDeals",
                "parameters": [
                    {"type": "string", "description": "Name fragment", "name": "q", "in": "query"},
                    {"type": "string", "description": "Category fragment", "name": "category", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Deal"}}},
                    "400": {"description": "Neither q nor category given", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/categories": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Categories"],
                "summary": "Random categories",
                "operationId": "randomCategories",
                "parameters": [
                    {"maximum": 100, "minimum": 1, "type": "integer", "description": "Number of categories", "name": "count", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Category"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Categories"],
                "summary": "Create a category",
                "operationId": "createCategory",
                "parameters": [
                    {"description": "Category payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.CategoryInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Category"}},
                    "409": {"description": "Duplicate name", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/categories/page": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Categories"],
                "summary": "Categories by page",
                "operationId": "categoriesPage",
                "parameters": [
                    {"minimum": 1, "type": "integer", "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 200, "minimum": 1, "type": "integer", "description": "Page size", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.CategoryPage"}}
                }
            }
        },
        "/categories/{id}": {
            "delete": {
                "tags": ["Categories"],
                "summary": "Delete a category",
                "operationId": "deleteCategory",
                "parameters": [
                    {"type": "integer", "description": "Category ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Category not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/all-categories": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Categories"],
                "summary": "All categories",
                "operationId": "allCategories",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Category"}}}
                }
            }
        },
        "/category/{slug}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Categories"],
                "summary": "Category with its deals",
                "operationId": "categoryDeals",
                "parameters": [
                    {"type": "string", "description": "Category slug", "name": "slug", "in": "path", "required": true},
                    {"type": "integer", "description": "Maximum deals", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CategoryDealsResponse"}},
                    "404": {"description": "Category not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/analytics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Recent engagement events",
                "operationId": "recentAnalytics",
                "parameters": [
                    {"maximum": 500, "minimum": 1, "type": "integer", "default": 50, "description": "Maximum events", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/repo.AnalyticsRow"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Record an engagement event",
                "operationId": "recordAnalytics",
                "parameters": [
                    {"description": "Event", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.AnalyticsInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.AnalyticsEvent"}},
                    "400": {"description": "Invalid event", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Catalogue summary",
                "operationId": "stats",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Stats"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Category": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "domain.Deal": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "software_name": {"type": "string"},
                "software_name_slug": {"type": "string"},
                "category_id": {"type": "integer"},
                "categories": {"type": "string"},
                "logo_url": {"type": "string"},
                "website_url": {"type": "string"},
                "referral_link": {"type": "string"},
                "discount": {"type": "string"},
                "coupon_code": {"type": "string"},
                "time_limit": {"type": "string"},
                "description": {"type": "string"},
                "about": {"type": "string"},
                "is_active": {"type": "boolean"},
                "clicks": {"type": "integer"},
                "likes": {"type": "integer"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "domain.AnalyticsEvent": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "deal_id": {"type": "integer"},
                "action": {"type": "string", "enum": ["view", "click", "copy_code"]},
                "ip_address": {"type": "string"},
                "user_agent": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string"}
            }
        },
        "handlers.LikesResponse": {
            "type": "object",
            "properties": {
                "likes": {"type": "integer", "example": 3}
            }
        },
        "handlers.CategoryDealsResponse": {
            "type": "object",
            "properties": {
                "category": {"$ref": "#/definitions/domain.Category"},
                "deals": {"type": "array", "items": {"$ref": "#/definitions/domain.Deal"}}
            }
        },
        "repo.RelatedDeal": {
            "allOf": [
                {"$ref": "#/definitions/domain.Deal"},
                {"type": "object", "properties": {"contextual_likes": {"type": "integer"}}}
            ]
        },
        "repo.AnalyticsRow": {
            "allOf": [
                {"$ref": "#/definitions/domain.AnalyticsEvent"},
                {"type": "object", "properties": {"software_name": {"type": "string"}, "discount": {"type": "string"}}}
            ]
        },
        "services.DealInput": {
            "type": "object",
            "required": ["software_name", "discount"],
            "properties": {
                "software_name": {"type": "string", "maxLength": 255},
                "software_name_slug": {"type": "string"},
                "category_id": {"type": "integer"},
                "categories": {"type": "string"},
                "logo_url": {"type": "string"},
                "website_url": {"type": "string"},
                "referral_link": {"type": "string"},
                "discount": {"type": "string", "maxLength": 255},
                "coupon_code": {"type": "string"},
                "time_limit": {"type": "string"},
                "description": {"type": "string"},
                "about": {"type": "string"},
                "is_active": {"type": "boolean"}
            }
        },
        "services.DealDetail": {
            "allOf": [
                {"$ref": "#/definitions/domain.Deal"},
                {"type": "object", "properties": {"category_name": {"type": "string"}, "all_categories": {"type": "array", "items": {"type": "string"}}}}
            ]
        },
        "services.CategoryInput": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string", "maxLength": 255},
                "description": {"type": "string"}
            }
        },
        "services.CategoryPage": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/domain.Category"}},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "services.PairInput": {
            "type": "object",
            "required": ["sourceDealId", "relatedDealId"],
            "properties": {
                "sourceDealId": {"type": "integer"},
                "relatedDealId": {"type": "integer"}
            }
        },
        "services.AnalyticsInput": {
            "type": "object",
            "required": ["deal_id", "action"],
            "properties": {
                "deal_id": {"type": "integer"},
                "action": {"type": "string", "enum": ["view", "click", "copy_code"]}
            }
        },
        "services.Stats": {
            "type": "object",
            "properties": {
                "deals": {"type": "integer"},
                "active_deals": {"type": "integer"},
                "categories": {"type": "integer"},
                "likes": {"type": "integer"},
                "clicks": {"type": "integer"},
                "related_likes": {"type": "integer"},
                "view_events": {"type": "integer"},
                "click_events": {"type": "integer"},
                "copy_events": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Deals API",
	Description:      "Software deals catalogue with related-deal ranking, likes and engagement analytics.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
