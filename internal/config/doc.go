// SPDX-License-Identifier: MIT

// Package config provides configuration management for the bike-builds-api
// daemon.
//
// Configuration is resolved with the precedence ENV > file > defaults. The
// YAML file is parsed strictly: unknown fields and multi-document files are
// rejected so typos surface at startup instead of silently falling back to
// defaults. A ConfigHolder supports hot reloading via fsnotify; a reload
// that fails to parse or validate keeps the previous configuration.
package config
