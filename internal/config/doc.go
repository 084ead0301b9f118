// Package config provides configuration management for the To-Docx backend.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. config.yaml (or the file named by TODOCX_CONFIG_FILE)
//  3. Default() values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern TODOCX_<SECTION>_<FIELD>:
//
//	TODOCX_SERVER_PORT=8765
//	TODOCX_BILLING_UNIT_PRICE_PER_HOUR=0.8
//	TODOCX_MEDIA_MAX_DURATION=12h
//	TODOCX_STORAGE_ENDPOINT=minio.example.com:9000
//	TODOCX_ASR_MODEL=paraformer-mtl-v1
//
// # Paths
//
// The license and quota records live in a user-writable directory:
// %APPDATA%\to-docx-desktop on Windows and ~/.to-docx elsewhere.
//
// A single *Config is built in main and handed to every constructor; no
// package reads configuration from globals.
package config
