package formatter

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/renga/internal/tool"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatDescriptors(descriptors []tool.Descriptor) (string, error) {
	data, err := yaml.Marshal(descriptorViews(descriptors))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
