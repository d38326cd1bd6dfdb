package registry

import "context"

// Mock returns canned catalog data so the core can be exercised without
// network access to a real registry (§4.9: "each connector exposes a mock
// variant").
type Mock struct {
	NamespacesData   []string
	RepositoriesData []string
	TagsData         []string
}

var _ Client = (*Mock)(nil)

func (m *Mock) Namespaces(ctx context.Context, scope string) ([]string, error) {
	if m.NamespacesData != nil {
		return m.NamespacesData, nil
	}
	return []string{"library", "trydirect"}, nil
}

func (m *Mock) Repositories(ctx context.Context, scope, namespace string) ([]string, error) {
	if m.RepositoriesData != nil {
		return m.RepositoriesData, nil
	}
	return []string{"nginx", "postgres"}, nil
}

func (m *Mock) Tags(ctx context.Context, scope, namespace, repository string) ([]string, error) {
	if m.TagsData != nil {
		return m.TagsData, nil
	}
	return []string{"latest", "stable"}, nil
}

func (m *Mock) Ping(ctx context.Context) error { return nil }
