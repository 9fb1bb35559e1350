// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

/*
Package config provides layered application configuration using Koanf v2.

Configuration is assembled from three sources with clear precedence:

 1. Built-in defaults (lowest priority)
 2. Optional YAML config file
 3. Environment variables (highest priority)

The config file is searched at ./config.yaml, ./config.yml,
/etc/oneiro/config.yaml and /etc/oneiro/config.yml, or taken from the
ONEIRO_CONFIG environment variable.

Environment variables are prefixed with ONEIRO_ and use double underscores
as section separators:

	ONEIRO_SERVER__PORT=8080
	ONEIRO_STORAGE__DIR=/var/lib/oneiro
	ONEIRO_ENGINE__LIFECYCLE__RETRAIN_INTERVAL=25

A handful of common settings have unprefixed aliases: PORT, HOST,
DATA_DIR, LOG_LEVEL and USER_ID.

The engine tuning section is the engine's own config struct passed through
verbatim, so every scoring and learning constant can be overridden from
the same file. All loaded configuration is validated before use.
*/
package config
