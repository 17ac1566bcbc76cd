// Package config provides configuration structures and utilities for the
// sitemaps tool. It defines crawl options, per-site settings loaded from a
// YAML file, and output preferences.
package config
