package registry

import (
	"github.com/invopop/jsonschema"

	"parley/internal/schema"
)

// SchemaAgentsManifest names the registered schema for the agents manifest.
const SchemaAgentsManifest = "agents-manifest"

func init() {
	_ = schema.Register(SchemaAgentsManifest, agentsManifestSchema)
}

func agentsManifestSchema() *jsonschema.Schema {
	return schema.Reflect(Manifest{}, "yaml")
}
