// Package docs registers the OpenAPI document served under /api/swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/uploads/signature": {
            "post": {
                "summary": "Issue a signed upload ticket",
                "tags": ["uploads"],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Ticket issued"},
                    "401": {"description": "Missing or invalid token"},
                    "500": {"description": "Server misconfigured"}
                }
            }
        },
        "/posts": {
            "get": {
                "summary": "List the feed newest first with comment threads",
                "tags": ["posts"],
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "Feed page"}}
            },
            "post": {
                "summary": "Record a post for an uploaded object or a caption",
                "tags": ["posts"],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Post created"},
                    "400": {"description": "Nothing to post or invalid body"},
                    "401": {"description": "Not signed in"}
                }
            }
        },
        "/posts/upload": {
            "post": {
                "summary": "Upload files sequentially, one post per file",
                "tags": ["posts"],
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "files", "in": "formData", "type": "file"},
                    {"name": "caption", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "At least one post created"},
                    "400": {"description": "Nothing to post"},
                    "502": {"description": "Every file failed upstream"}
                }
            }
        },
        "/posts/search": {
            "get": {
                "summary": "Search posts by caption",
                "tags": ["posts"],
                "parameters": [{"name": "q", "in": "query", "type": "string", "required": true}],
                "responses": {"200": {"description": "Matching posts"}}
            }
        },
        "/posts/{id}": {
            "get": {
                "summary": "Get one post with its comment thread",
                "tags": ["posts"],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Post"}, "404": {"description": "Not found"}}
            }
        },
        "/posts/{id}/download": {
            "get": {
                "summary": "Download the stored object of a post",
                "tags": ["posts"],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "Object stream"},
                    "302": {"description": "Redirect to the object"},
                    "404": {"description": "Text post or not found"}
                }
            }
        },
        "/posts/{id}/comments": {
            "get": {
                "summary": "List a post's comment forest",
                "tags": ["comments"],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {"200": {"description": "Comment forest"}}
            },
            "post": {
                "summary": "Add a comment or reply",
                "tags": ["comments"],
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "201": {"description": "Comment created"},
                    "400": {"description": "Invalid text or parent"},
                    "404": {"description": "Post not found"}
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the identity token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8375",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "Snapfeed API",
	Description:      "Photo and video feed with signed uploads and threaded comments",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
