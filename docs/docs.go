// Package docs holds the OpenAPI description of the trustmeter HTTP API
// served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "trustmeter",
            "url": "https://github.com/artpar/trustmeter/issues"
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
        "/api/nonce": {
            "get": {
                "description": "Returns the nonce and sign-in message for a wallet, registering the wallet on first sight",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Auth"
                ],
                "summary": "Get sign-in challenge",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Wallet address",
                        "name": "wallet_address",
                        "in": "query"
                    },
                    {
                        "description": "Request body",
                        "name": "body",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/http.nonceRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            },
            "post": {
                "description": "Returns the nonce and sign-in message for a wallet, registering the wallet on first sight",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Auth"
                ],
                "summary": "Get sign-in challenge",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Wallet address",
                        "name": "wallet_address",
                        "in": "query"
                    },
                    {
                        "description": "Request body",
                        "name": "body",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/http.nonceRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/auth/session": {
            "post": {
                "description": "Exchanges a signed challenge for a bearer session token",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Auth"
                ],
                "summary": "Create session",
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.sessionRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "404": {
                        "description": "Sessions disabled",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/me": {
            "get": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Returns the authenticated wallet user",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Auth"
                ],
                "summary": "Current user",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/apis": {
            "get": {
                "description": "Returns every registered API",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "APIs"
                ],
                "summary": "List APIs",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            },
            "post": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Registers an API owned by the caller and mirrors it to the settlement contract when configured",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "APIs"
                ],
                "summary": "Register API",
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.registerAPIRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/available-apis": {
            "get": {
                "description": "Returns every registered API",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "APIs"
                ],
                "summary": "List APIs",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/register": {
            "post": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Registers an API owned by the caller and mirrors it to the settlement contract when configured",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "APIs"
                ],
                "summary": "Register API",
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.registerAPIRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/apis/mine": {
            "get": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Returns the APIs owned by the caller",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "APIs"
                ],
                "summary": "List my APIs",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/my-apis": {
            "get": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Returns the APIs owned by the caller",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "APIs"
                ],
                "summary": "List my APIs",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/apis/{id}": {
            "get": {
                "description": "Returns one API",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "APIs"
                ],
                "summary": "Get API",
                "parameters": [
                    {
                        "type": "string",
                        "description": "API ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/apis/{id}/price": {
            "put": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Changes the price per request of an API owned by the caller. Open usage keeps the price it accrued at",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "APIs"
                ],
                "summary": "Update price",
                "parameters": [
                    {
                        "type": "string",
                        "description": "API ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.updatePriceRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "403": {
                        "description": "Caller does not own the API",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/usage/{apiID}": {
            "get": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Returns the caller's unsettled usage for an API",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Usage"
                ],
                "summary": "Get open usage",
                "parameters": [
                    {
                        "type": "string",
                        "description": "API ID",
                        "name": "apiID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            },
            "post": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Charges one request against an API to the caller at the current price",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Usage"
                ],
                "summary": "Record usage",
                "parameters": [
                    {
                        "type": "string",
                        "description": "API ID",
                        "name": "apiID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/log-usage": {
            "post": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Charges one request against an API to the caller at the current price",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Usage"
                ],
                "summary": "Record usage",
                "parameters": [
                    {
                        "type": "string",
                        "description": "API ID",
                        "name": "api_id",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/settle/{apiID}": {
            "post": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Freezes the caller's open usage for an API into a batch and returns the payment instruction",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Settlements"
                ],
                "summary": "Close settlement batch",
                "parameters": [
                    {
                        "type": "string",
                        "description": "API ID",
                        "name": "apiID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "422": {
                        "description": "No usage to settle",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/confirm-settlement/{batchID}": {
            "post": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Verifies the payer's transaction against a batch and marks it settled",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Settlements"
                ],
                "summary": "Confirm settlement",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Batch ID",
                        "name": "batchID",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.confirmRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "503": {
                        "description": "Chain unavailable",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/settlements": {
            "get": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Lists the caller's batches, newest first",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Settlements"
                ],
                "summary": "List settlements",
                "parameters": [
                    {
                        "type": "string",
                        "description": "closed or settled",
                        "name": "state",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "API ID",
                        "name": "api_id",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Maximum number of batches",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/api/settlements/{batchID}": {
            "get": {
                "security": [
                    {
                        "WalletAddress": [],
                        "WalletSignature": []
                    },
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Returns a batch visible to its payer or the API owner. Closed batches include the payment instruction",
                "produces": [
                    "application/vnd.api+json"
                ],
                "tags": [
                    "Settlements"
                ],
                "summary": "Get settlement",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Batch ID",
                        "name": "batchID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid wallet signature",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/jsonapi.Document"
                        }
                    }
                }
            }
        },
        "/health": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Health"
                ],
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/health/ready": {
            "get": {
                "description": "Pings the database and chain node",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Health"
                ],
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "503": {
                        "description": "A backend is down",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/version": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "System"
                ],
                "summary": "Service version",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/http.VersionInfo"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "http.VersionInfo": {
            "type": "object",
            "properties": {
                "service": {
                    "type": "string"
                },
                "settlement_mode": {
                    "type": "string"
                },
                "version": {
                    "type": "string"
                }
            }
        },
        "http.confirmRequest": {
            "type": "object",
            "required": [
                "transaction_hash"
            ],
            "properties": {
                "transaction_hash": {
                    "type": "string",
                    "example": "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
                }
            }
        },
        "http.nonceRequest": {
            "type": "object",
            "required": [
                "wallet_address"
            ],
            "properties": {
                "wallet_address": {
                    "type": "string",
                    "example": "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"
                }
            }
        },
        "http.registerAPIRequest": {
            "type": "object",
            "required": [
                "name",
                "price_per_request"
            ],
            "properties": {
                "name": {
                    "type": "string",
                    "maxLength": 128
                },
                "price_per_request": {
                    "type": "string",
                    "description": "Price in wei",
                    "example": "1000000000000000"
                }
            }
        },
        "http.sessionRequest": {
            "type": "object",
            "required": [
                "signature",
                "wallet_address"
            ],
            "properties": {
                "signature": {
                    "type": "string",
                    "description": "65-byte personal_sign signature, hex encoded"
                },
                "wallet_address": {
                    "type": "string"
                }
            }
        },
        "http.updatePriceRequest": {
            "type": "object",
            "required": [
                "price_per_request"
            ],
            "properties": {
                "price_per_request": {
                    "type": "string",
                    "description": "Price in wei"
                }
            }
        },
        "jsonapi.Document": {
            "type": "object",
            "properties": {
                "data": {},
                "errors": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/jsonapi.Error"
                    }
                },
                "links": {
                    "$ref": "#/definitions/jsonapi.Links"
                },
                "meta": {
                    "type": "object",
                    "additionalProperties": true
                }
            }
        },
        "jsonapi.Error": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "detail": {
                    "type": "string"
                },
                "meta": {
                    "type": "object",
                    "additionalProperties": true
                },
                "source": {
                    "$ref": "#/definitions/jsonapi.ErrorSource"
                },
                "status": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                }
            }
        },
        "jsonapi.ErrorSource": {
            "type": "object",
            "properties": {
                "parameter": {
                    "type": "string"
                },
                "pointer": {
                    "type": "string"
                }
            }
        },
        "jsonapi.Links": {
            "type": "object",
            "properties": {
                "related": {
                    "type": "string"
                },
                "self": {
                    "type": "string"
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Session token from /api/auth/session (format: \"Bearer {token}\")",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        },
        "WalletAddress": {
            "description": "Wallet address of the caller",
            "type": "apiKey",
            "name": "X-Wallet-Address",
            "in": "header"
        },
        "WalletSignature": {
            "description": "Signature of the caller's current sign-in message",
            "type": "apiKey",
            "name": "X-Wallet-Signature",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "trustmeter - Pay-per-request API metering",
	Description:      "Wallet-authenticated usage metering with on-chain settlement.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
