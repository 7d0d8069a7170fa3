// Package scope ranks project packages against a query so search can
// boost results that live where the query's vocabulary lives.
package scope

import (
	"context"
	"strings"

	"github.com/symdex/symdex-mcp/internal/storage"
)

// Provider selects packages relevant to a set of query terms
type Provider interface {
	// TopModules returns the package paths most relevant to the terms,
	// best first, at most n
	TopModules(ctx context.Context, projectID int64, terms []string, n int) ([]string, error)
}

// StorageProvider scores the modules table by lexical overlap with the
// query terms. Name matches weigh more than purpose or export mentions.
type StorageProvider struct {
	storage storage.Storage
}

// NewProvider creates a storage-backed scope provider
func NewProvider(store storage.Storage) *StorageProvider {
	return &StorageProvider{storage: store}
}

func (p *StorageProvider) TopModules(ctx context.Context, projectID int64, terms []string, n int) ([]string, error) {
	if len(terms) == 0 || n <= 0 {
		return nil, nil
	}

	modules, err := p.storage.ListModules(ctx, projectID)
	if err != nil {
		return nil, err
	}

	type scored struct {
		path  string
		score int
	}
	ranked := make([]scored, 0, len(modules))

	for _, module := range modules {
		score := scoreModule(module, terms)
		if score > 0 {
			ranked = append(ranked, scored{path: module.Path, score: score})
		}
	}

	// Insertion sort keeps ties in ListModules path order, which is stable
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	if n > len(ranked) {
		n = len(ranked)
	}
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		paths[i] = ranked[i].path
	}
	return paths, nil
}

func scoreModule(module *storage.Module, terms []string) int {
	name := strings.ToLower(module.Name)
	path := strings.ToLower(module.Path)
	purpose := strings.ToLower(module.Purpose)
	exports := strings.ToLower(module.Exports)

	score := 0
	for _, term := range terms {
		term = strings.ToLower(term)
		if term == "" {
			continue
		}
		switch {
		case name == term:
			score += 4
		case strings.Contains(path, term):
			score += 3
		case strings.Contains(exports, term):
			score += 2
		case strings.Contains(purpose, term):
			score++
		}
	}
	return score
}
