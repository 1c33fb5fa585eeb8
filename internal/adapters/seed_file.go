package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"fleet-manifests/internal/ports"
	"fleet-manifests/internal/types"
)

// SeedFileAdapter reads a seed directory: every *.yaml / *.yml file below
// it, in path order, each holding one or more YAML documents.
type SeedFileAdapter struct{}

func NewSeedFileAdapter() SeedFileAdapter {
	return SeedFileAdapter{}
}

func (a SeedFileAdapter) Load(ctx context.Context, dir string) (types.Seed, error) {
	paths, err := findSeedFiles(dir)
	if err != nil {
		return types.Seed{}, err
	}
	var seed types.Seed
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return types.Seed{}, err
		}
		docs, err := a.LoadFile(path)
		if err != nil {
			return types.Seed{}, err
		}
		for i, doc := range docs {
			if err := addSeedDocument(&seed, doc, fmt.Sprintf("%s#%d", path, i+1)); err != nil {
				return types.Seed{}, err
			}
		}
	}
	return seed, nil
}

// LoadFile decodes every document of one seed file.
func (a SeedFileAdapter) LoadFile(path string) ([]types.SeedDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("seed file not found: " + path).
			WithCause(err)
	}
	defer file.Close()

	var docs []types.SeedDocument
	decoder := yaml.NewDecoder(file)
	for {
		var doc types.SeedDocument
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to parse seed yaml: " + path).
				WithCause(err)
		}
		if doc.Kind == "" && doc.Name == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func addSeedDocument(seed *types.Seed, doc types.SeedDocument, source string) error {
	switch doc.Kind {
	case types.SeedKindCatalog:
		if strings.TrimSpace(doc.Name) == "" {
			return seedError(source, "catalog document needs a name")
		}
		seed.Catalogs = append(seed.Catalogs, types.SeedCatalog{Name: doc.Name, Source: source, Entries: doc.Entries})
	case types.SeedKindManifest:
		if doc.Manifest == nil {
			return seedError(source, "manifest document has no manifest section")
		}
		manifest := *doc.Manifest
		if manifest.Name == "" {
			manifest.Name = doc.Name
		}
		if strings.TrimSpace(manifest.Name) == "" {
			return seedError(source, "manifest document needs a name")
		}
		seed.Manifests = append(seed.Manifests, manifest)
	case types.SeedKindAliases:
		seed.Aliases = append(seed.Aliases, doc.Aliases...)
	case types.SeedKindModifications:
		seed.Modifications = append(seed.Modifications, doc.Modifications...)
	default:
		return seedError(source, fmt.Sprintf("unknown document kind %q", doc.Kind))
	}
	return nil
}

func seedError(source string, msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(source + ": " + msg)
}

func findSeedFiles(root string) ([]string, error) {
	if root == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("seed directory is empty")
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isSeedFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("seed directory not found: " + root).
			WithCause(err)
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan seed directory").
			WithCause(err)
	}
	sort.Strings(paths)
	return paths, nil
}

func isSeedFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

var _ ports.SeedSourcePort = SeedFileAdapter{}
