package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk layout of a knowledge file.
type Document struct {
	Products      []Product           `yaml:"products"`
	KnowledgeBase map[string][]string `yaml:"knowledge_base"`
}

func LoadFile(path string) (*Catalog, *KnowledgeBase, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read knowledge file: %w", err)
	}
	return Parse(payload)
}

func Parse(payload []byte) (*Catalog, *KnowledgeBase, error) {
	var doc Document
	if err := yaml.Unmarshal(payload, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse knowledge file: %w", err)
	}
	return doc.Build()
}

func (d Document) Build() (*Catalog, *KnowledgeBase, error) {
	cat, err := New(d.Products)
	if err != nil {
		return nil, nil, fmt.Errorf("build catalog: %w", err)
	}
	kb, err := NewKnowledgeBase(d.KnowledgeBase)
	if err != nil {
		return nil, nil, fmt.Errorf("build knowledge base: %w", err)
	}
	return cat, kb, nil
}
