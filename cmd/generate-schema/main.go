// Command generate-schema writes the JSON schema of the dittofolders
// configuration file.
//
// Usage:
//
//	generate-schema [output]
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/marmos91/dittofolders/pkg/config"
)

func main() {
	outputFile := "config.schema.json"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	schemaJSON, err := generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", outputFile)
}

// generate reflects config.Config into an indented JSON schema. Property
// names follow the yaml tags used in configuration files.
func generate() ([]byte, error) {
	reflector := jsonschema.Reflector{
		FieldNameTag:              "yaml",
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "dittofolders configuration"
	schema.Description = "Configuration schema for the dittofolders folder storages"
	schema.Version = "1.0.0"

	return json.MarshalIndent(schema, "", "  ")
}
