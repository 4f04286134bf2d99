package testctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func firstNetwork(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".nnwb") {
			return name, nil
		}
	}
	return "", fmt.Errorf("no .nnwb networks found in %s", dir)
}

func hasHostNetworks() bool {
	dir := filepath.Join(homeDir(), "networks")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".nnwb") {
			return true
		}
	}
	return false
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}
