package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/dittodav/pkg/config"
)

// Writes the JSON schema of the configuration file, for editor completion
// and validation of config.yaml.
func main() {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		// Every config struct carries mapstructure tags; the adapter
		// configs carry nothing else.
		FieldNameTag: "mapstructure",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "DittoDAV Configuration"
	schema.Description = "Configuration schema for the DittoDAV server"
	schema.Version = "1.0.0"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	outputFile := "config.schema.json"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("JSON schema written to %s\n", outputFile)
}
