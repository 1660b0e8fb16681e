package config

import (
	"github.com/invopop/jsonschema"

	"parley/internal/schema"
)

// SchemaConfigFile names the registered schema for parley.yaml.
const SchemaConfigFile = "config-file"

func init() {
	_ = schema.Register(SchemaConfigFile, configFileSchema)
}

func configFileSchema() *jsonschema.Schema {
	return schema.Reflect(Config{}, "yaml")
}
