package rest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
)

// LoadOpenAPI reads and validates the API document at path.
func LoadOpenAPI(ctx context.Context, path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

// UndocumentedRoutes lists "METHOD /path" entries that the router serves
// under basePath but doc does not describe, and documented operations the
// router does not serve.
func UndocumentedRoutes(doc *openapi3.T, routes chi.Routes, basePath string) (missingInDoc, missingInRouter []string, err error) {
	served := map[string]bool{}
	walkErr := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if !strings.HasPrefix(route, basePath+"/") {
			return nil
		}
		path := strings.TrimSuffix(strings.TrimPrefix(route, basePath), "/")
		served[method+" "+path] = true
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("walk routes: %w", walkErr)
	}

	documented := map[string]bool{}
	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			documented[method+" "+strings.TrimSuffix(path, "/")] = true
		}
	}

	for k := range served {
		if !documented[k] {
			missingInDoc = append(missingInDoc, k)
		}
	}
	for k := range documented {
		if !served[k] {
			missingInRouter = append(missingInRouter, k)
		}
	}
	sort.Strings(missingInDoc)
	sort.Strings(missingInRouter)
	return missingInDoc, missingInRouter, nil
}
