package formatter

import (
	"encoding/json"

	"github.com/harunnryd/renga/internal/tool"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatDescriptors(descriptors []tool.Descriptor) (string, error) {
	data, err := json.MarshalIndent(descriptorViews(descriptors), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type descriptorView struct {
	Name        string                 `json:"name" yaml:"name"`
	Provider    string                 `json:"provider" yaml:"provider"`
	Operation   string                 `json:"operation" yaml:"operation"`
	Description string                 `json:"description" yaml:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func descriptorViews(descriptors []tool.Descriptor) []descriptorView {
	views := make([]descriptorView, 0, len(descriptors))
	for _, d := range descriptors {
		views = append(views, descriptorView{
			Name:        d.QualifiedName(),
			Provider:    d.Provider,
			Operation:   d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return views
}
