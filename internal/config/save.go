package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SaveSettings updates the display settings in the config file,
// preserving comments and formatting in other sections by editing the
// yaml.Node tree in place.
func SaveSettings(configPath string, cfg Config) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	root := documentRoot(&doc)
	upsertScalar(root, "tab_width", strconv.FormatUint(uint64(cfg.TabWidth), 10), "!!int")
	upsertScalar(root, "wrap_width", formatFloat(cfg.WrapWidth), "!!float")
	upsertNode(root, "font", fontNode(cfg.Font))

	return writeAtomic(configPath, &doc)
}

// documentRoot returns the mapping node of the document, creating the
// document structure when the file was empty.
func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 &&
		doc.Content[0].Kind == yaml.MappingNode {
		return doc.Content[0]
	}
	root := &yaml.Node{Kind: yaml.MappingNode}
	*doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	return root
}

// upsertNode replaces the value of key in the mapping, or appends the
// pair when the key is absent.
func upsertNode(root *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = value
			return
		}
	}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

func upsertScalar(root *yaml.Node, key, value, tag string) {
	upsertNode(root, key, &yaml.Node{Kind: yaml.ScalarNode, Value: value, Tag: tag})
}

func fontNode(f FontConfig) *yaml.Node {
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "family"},
			{Kind: yaml.ScalarNode, Value: f.Family},
			{Kind: yaml.ScalarNode, Value: "size"},
			{Kind: yaml.ScalarNode, Value: formatFloat(f.Size), Tag: "!!float"},
		},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeAtomic marshals the document and replaces the config file via a
// temp file rename so a crash never leaves a half-written config.
func writeAtomic(configPath string, doc *yaml.Node) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".lamina.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
