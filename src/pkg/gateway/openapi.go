package gateway

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/q-controller/imagedrop/src/pkg/images"
	"gopkg.in/yaml.v3"
)

const (
	Tag        = "ImageService"
	PathPrefix = "/v1/images"
)

//go:embed docs/openapi.yaml
var openAPISpecs string

// GenerateOpenAPISpecs merges the image endpoints into the base document.
func GenerateOpenAPISpecs() (string, error) {
	var spec map[string]interface{}
	if err := yaml.Unmarshal([]byte(openAPISpecs), &spec); err != nil {
		return "", fmt.Errorf("failed to parse OpenAPI spec: %w", err)
	}

	if existingTags, ok := spec["tags"].([]interface{}); ok {
		// Avoid duplicates
		found := false
		for _, t := range existingTags {
			if t == Tag {
				found = true
				break
			}
		}
		if !found {
			spec["tags"] = append(existingTags, Tag)
		}
	} else {
		spec["tags"] = []string{Tag}
	}

	var imagesSpec map[string]interface{}
	if unmarshalErr := yaml.Unmarshal([]byte(images.GetOpenAPISpec(PathPrefix, Tag)), &imagesSpec); unmarshalErr == nil {
		paths, ok := spec["paths"].(map[string]interface{})
		if !ok {
			paths = map[string]interface{}{}
			spec["paths"] = paths
		}
		for k, v := range imagesSpec {
			paths[k] = v
		}
	} else {
		slog.Warn("Failed to unmarshal images OpenAPI spec", "error", unmarshalErr)
	}

	bytes, bytesErr := yaml.Marshal(spec)
	if bytesErr != nil {
		return "", fmt.Errorf("failed to marshal OpenAPI spec: %w", bytesErr)
	}
	return string(bytes), nil
}
