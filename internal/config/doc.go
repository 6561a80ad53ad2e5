// Package config loads the cartsync configuration file.
//
// Files are CUE (JSON is valid CUE). A file is unified with the embedded
// #Config schema, which closes the field set and supplies defaults, then
// decoded into a Config.
package config
