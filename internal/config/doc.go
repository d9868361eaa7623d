// Package config loads the tcc-manager configuration.
//
// The file is YAML (default) or TOML (".toml" extension). ${VAR} references
// are expanded from the environment before parsing. The parsed document is
// checked against an embedded CUE schema, so unknown keys, bad enum values
// and out-of-range numbers are rejected with the offending path, and is then
// decoded over Default(). A missing file at the default location means
// "all defaults".
//
// Lookup order for the file: --config flag, $TCC_MANAGER_CONFIG, then
// $XDG_CONFIG_HOME/tcc-manager/config.yaml.
package config
