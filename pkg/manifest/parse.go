package manifest

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformed is returned for documents that fail to decode or validate.
var ErrMalformed = errors.New("malformed document")

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemasErr  error
	versionSch  *jsonschema.Schema
	assetsSch   *jsonschema.Schema
)

func compileSchemas() {
	compiler := jsonschema.NewCompiler()
	for _, name := range []string{"version.schema.json", "asset_index.schema.json"} {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			schemasErr = err
			return
		}
		if err := compiler.AddResource(schemaID(name), bytes.NewReader(data)); err != nil {
			schemasErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
	}
	if versionSch, schemasErr = compiler.Compile(schemaID("version.schema.json")); schemasErr != nil {
		return
	}
	assetsSch, schemasErr = compiler.Compile(schemaID("asset_index.schema.json"))
}

func schemaID(name string) string {
	return "inmemory://firelaunch/" + name
}

func validate(sch func() *jsonschema.Schema, data []byte) error {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return fmt.Errorf("compile schema: %w", schemasErr)
	}
	var payload any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := sch().Validate(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// ParseVersion validates and decodes a version descriptor.
func ParseVersion(data []byte) (*Version, error) {
	if err := validate(func() *jsonschema.Schema { return versionSch }, data); err != nil {
		return nil, err
	}
	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i := range v.Libraries {
		if _, err := ParseCoordinate(v.Libraries[i].Name); err != nil && !hasExplicitPath(&v.Libraries[i]) {
			return nil, fmt.Errorf("%w: library %d: %v", ErrMalformed, i, err)
		}
	}
	return &v, nil
}

// ParseAssetIndex validates and decodes an asset index.
func ParseAssetIndex(data []byte) (*AssetIndex, error) {
	if err := validate(func() *jsonschema.Schema { return assetsSch }, data); err != nil {
		return nil, err
	}
	var idx AssetIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &idx, nil
}

func hasExplicitPath(l *Library) bool {
	return l.Downloads != nil && l.Downloads.Artifact != nil && l.Downloads.Artifact.Path != ""
}
