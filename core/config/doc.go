// Package config loads devchat settings from an optional YAML file and the
// environment. Environment variables always win over the file:
//
//	AI_PROVIDER, AI_BASE_URL, AI_API_KEY, AI_MODEL, AI_TEMPERATURE
//	DEVCHAT_MAX_SESSIONS, DEVCHAT_SESSION_TTL
//	DEVCHAT_PROJECT_ROOT, DEVCHAT_FILE_SERVICE_URL
//	DEVCHAT_HTML_DOCS_AS_MARKDOWN
//	DEVCHAT_LOG_FORMAT, DEVCHAT_LOG_LEVEL
package config
