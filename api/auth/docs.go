// Package auth holds the OpenAPI document served under /swagger/. It is
// produced from the handler annotations with
//
//	swag init -g internal/auth/http/router.go -o api/auth
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/workbench"
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
        "/v1/auth/register": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Register",
                "produces": [
                    "application/json"
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.RegisterRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.RegisterResponse"
                        }
                    },
                    "400": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "409": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/auth/login": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Log in",
                "produces": [
                    "application/json"
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.LoginRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.LoginResponse"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "403": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/auth/login/mfa": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Complete MFA login",
                "produces": [
                    "application/json"
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.MFALoginRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.TokenResponse"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "429": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/auth/refresh": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Refresh access token",
                "produces": [
                    "application/json"
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.RefreshRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.TokenResponse"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/auth/logout": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Log out",
                "produces": [
                    "application/json"
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.LogoutRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                }
            }
        },
        "/v1/auth/logout-all": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Log out everywhere",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/me": {
            "get": {
                "tags": [
                    "Users"
                ],
                "summary": "Current principal",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.UserInfoResponse"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "403": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/sessions": {
            "get": {
                "tags": [
                    "Sessions"
                ],
                "summary": "List sessions",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ListSessionsResponse"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/sessions/{id}": {
            "delete": {
                "tags": [
                    "Sessions"
                ],
                "summary": "Revoke a session",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "403": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "404": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/password/validate": {
            "post": {
                "tags": [
                    "Password"
                ],
                "summary": "Check password complexity",
                "produces": [
                    "application/json"
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.PasswordValidateRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.PasswordValidateResponse"
                        }
                    }
                }
            }
        },
        "/v1/password/change": {
            "post": {
                "tags": [
                    "Password"
                ],
                "summary": "Change password",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.PasswordChangeRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "400": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/mfa": {
            "get": {
                "tags": [
                    "MFA"
                ],
                "summary": "MFA status",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.MFAStatusResponse"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/mfa/setup": {
            "post": {
                "tags": [
                    "MFA"
                ],
                "summary": "Begin TOTP enrollment",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.MFASetupResponse"
                        }
                    },
                    "409": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/mfa/setup/complete": {
            "post": {
                "tags": [
                    "MFA"
                ],
                "summary": "Confirm TOTP enrollment",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.MFASetupCompleteRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.BackupCodesResponse"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "409": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/mfa/verify": {
            "post": {
                "tags": [
                    "MFA"
                ],
                "summary": "Step-up verification",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.MFAVerifyRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.MFAVerifyResponse"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "429": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/mfa/backup-codes": {
            "post": {
                "tags": [
                    "MFA"
                ],
                "summary": "Regenerate backup codes",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.PasswordConfirmRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.BackupCodesResponse"
                        }
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "409": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/mfa/disable": {
            "post": {
                "tags": [
                    "MFA"
                ],
                "summary": "Disable MFA",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Request body",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.PasswordConfirmRequest"
                        }
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "401": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "409": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/users/{id}/verify": {
            "post": {
                "tags": [
                    "Users"
                ],
                "summary": "Verify a user's email",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.UserInfoResponse"
                        }
                    },
                    "403": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "404": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/users/{id}/deactivate": {
            "post": {
                "tags": [
                    "Users"
                ],
                "summary": "Deactivate a user",
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.UserInfoResponse"
                        }
                    },
                    "403": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "404": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "409": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/v1/users/{id}/role": {
            "post": {
                "description": "Sets the user's role. The last active admin cannot be demoted.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Users"
                ],
                "summary": "Assign a role",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "User ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Role",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/authsdk.SetRoleRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.UserInfoResponse"
                        }
                    },
                    "400": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "403": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "404": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    },
                    "409": {
                        "description": "Failure",
                        "schema": {
                            "$ref": "#/definitions/httpx.ErrorBody"
                        }
                    }
                }
            }
        },
        "/livez": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Liveness probe",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.HealthResponse"
                        }
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Readiness probe",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.HealthResponse"
                        }
                    },
                    "503": {
                        "description": "Not ready",
                        "schema": {
                            "$ref": "#/definitions/authsdk.HealthResponse"
                        }
                    }
                }
            }
        },
        "/.well-known/jwks.json": {
            "get": {
                "tags": [
                    "well-known"
                ],
                "summary": "Get JWKS",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.JWKSResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "authsdk.RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string",
                    "example": "ada@example.com"
                },
                "name": {
                    "type": "string",
                    "example": "Ada Lovelace"
                },
                "password": {
                    "type": "string"
                }
            }
        },
        "authsdk.RegisterResponse": {
            "type": "object",
            "properties": {
                "user_id": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "verified": {
                    "type": "boolean"
                }
            }
        },
        "authsdk.LoginRequest": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            }
        },
        "authsdk.LoginResponse": {
            "type": "object",
            "properties": {
                "mfa_required": {
                    "type": "boolean"
                },
                "mfa_token": {
                    "type": "string"
                },
                "mfa_methods": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "tokens": {
                    "$ref": "#/definitions/authsdk.TokenResponse"
                }
            }
        },
        "authsdk.MFALoginRequest": {
            "type": "object",
            "properties": {
                "mfa_token": {
                    "type": "string"
                },
                "code": {
                    "type": "string"
                },
                "backup_code": {
                    "type": "boolean"
                }
            }
        },
        "authsdk.RefreshRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {
                    "type": "string"
                }
            }
        },
        "authsdk.LogoutRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {
                    "type": "string"
                }
            }
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {
                    "type": "string"
                },
                "refresh_token": {
                    "type": "string"
                },
                "token_type": {
                    "type": "string",
                    "example": "Bearer"
                },
                "expires_in": {
                    "type": "integer",
                    "example": 900
                },
                "session_id": {
                    "type": "string"
                },
                "user": {
                    "$ref": "#/definitions/authsdk.UserInfoResponse"
                }
            }
        },
        "authsdk.SessionInfo": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "ip": {
                    "type": "string"
                },
                "user_agent": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "last_accessed_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "expires_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "current": {
                    "type": "boolean"
                }
            }
        },
        "authsdk.ListSessionsResponse": {
            "type": "object",
            "properties": {
                "sessions": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/authsdk.SessionInfo"
                    }
                }
            }
        },
        "authsdk.UserInfoResponse": {
            "type": "object",
            "properties": {
                "user_id": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "role": {
                    "type": "string",
                    "example": "member"
                },
                "verified": {
                    "type": "boolean"
                },
                "active": {
                    "type": "boolean"
                },
                "mfa_enabled": {
                    "type": "boolean"
                }
            }
        },
        "authsdk.PasswordValidateRequest": {
            "type": "object",
            "properties": {
                "password": {
                    "type": "string"
                },
                "email": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                }
            }
        },
        "authsdk.PasswordValidateResponse": {
            "type": "object",
            "properties": {
                "valid": {
                    "type": "boolean"
                },
                "violations": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "score": {
                    "type": "integer",
                    "example": 72
                },
                "strength": {
                    "type": "string",
                    "example": "strong"
                }
            }
        },
        "authsdk.PasswordChangeRequest": {
            "type": "object",
            "properties": {
                "current_password": {
                    "type": "string"
                },
                "new_password": {
                    "type": "string"
                }
            }
        },
        "authsdk.SetRoleRequest": {
            "type": "object",
            "properties": {
                "role": {
                    "type": "string",
                    "example": "manager"
                }
            }
        },
        "authsdk.PasswordConfirmRequest": {
            "type": "object",
            "properties": {
                "password": {
                    "type": "string"
                }
            }
        },
        "authsdk.MFASetupResponse": {
            "type": "object",
            "properties": {
                "provisioning_uri": {
                    "type": "string"
                },
                "secret": {
                    "type": "string",
                    "example": "JBSWY3DPEHPK3PXP"
                },
                "setup_token": {
                    "type": "string"
                },
                "issuer": {
                    "type": "string"
                },
                "account": {
                    "type": "string"
                }
            }
        },
        "authsdk.MFASetupCompleteRequest": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "setup_token": {
                    "type": "string"
                }
            }
        },
        "authsdk.MFAVerifyRequest": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "backup_code": {
                    "type": "boolean"
                }
            }
        },
        "authsdk.MFAVerifyResponse": {
            "type": "object",
            "properties": {
                "verified": {
                    "type": "boolean"
                }
            }
        },
        "authsdk.BackupCodesResponse": {
            "type": "object",
            "properties": {
                "codes": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "authsdk.MFAStatusResponse": {
            "type": "object",
            "properties": {
                "enabled": {
                    "type": "boolean"
                },
                "setup_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "last_used_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "backup_codes_remaining": {
                    "type": "integer"
                }
            }
        },
        "authsdk.HealthChecks": {
            "type": "object",
            "properties": {
                "database": {
                    "type": "string"
                },
                "signer": {
                    "type": "string"
                },
                "limiter": {
                    "type": "string"
                }
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "uptime": {
                    "type": "string"
                },
                "version": {
                    "type": "string"
                },
                "checks": {
                    "$ref": "#/definitions/authsdk.HealthChecks"
                }
            }
        },
        "jwtx.JWK": {
            "type": "object",
            "properties": {
                "kty": {
                    "type": "string"
                },
                "crv": {
                    "type": "string"
                },
                "x": {
                    "type": "string"
                },
                "kid": {
                    "type": "string"
                },
                "use": {
                    "type": "string"
                },
                "alg": {
                    "type": "string"
                }
            }
        },
        "authsdk.JWKSResponse": {
            "type": "object",
            "properties": {
                "keys": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/jwtx.JWK"
                    }
                }
            }
        },
        "httpx.ErrorBody": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "kind": {
                    "type": "string"
                },
                "code": {
                    "type": "string",
                    "example": "INVALID_TOKEN"
                },
                "message": {
                    "type": "string"
                },
                "details": {
                    "type": "object",
                    "additionalProperties": true
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT access token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Workbench Authentication Service API",
	Description:      "Password and TOTP authentication, sessions with opaque refresh tokens and short-lived JWT access tokens.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
