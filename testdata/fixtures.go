// Package testdata holds recorded hand landmark documents and the finger
// counts they should produce.
package testdata

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/fingertrain/internal/detector"
)

//go:embed hands/*
var handsFS embed.FS

// Expected is the finger count a fixture should classify to.
type Expected struct {
	Left  int `yaml:"left"`
	Right int `yaml:"right"`
}

// LoadHands decodes the named landmark fixture.
func LoadHands(name string) ([]detector.HandLandmarks, error) {
	data, err := handsFS.ReadFile("hands/" + name)
	if err != nil {
		return nil, fmt.Errorf("load hands %s: %w", name, err)
	}
	hands, err := detector.DecodeHands(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode hands %s: %w", name, err)
	}
	return hands, nil
}

// HandFixtures lists the landmark fixture names in order.
func HandFixtures() ([]string, error) {
	entries, err := handsFS.ReadDir("hands")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// LoadExpected reads the expected counts for every fixture.
func LoadExpected() (map[string]Expected, error) {
	data, err := handsFS.ReadFile("hands/expected.yaml")
	if err != nil {
		return nil, err
	}
	var expected map[string]Expected
	if err := yaml.Unmarshal(data, &expected); err != nil {
		return nil, fmt.Errorf("parse expected counts: %w", err)
	}
	return expected, nil
}
