package cococonv

// CategoryIndex maps category names to COCO categories with 1-based ids.
type CategoryIndex struct {
	byName map[string]Category
	names  []string // First-seen order.
	nextID int
}

// NewCategoryIndex returns an empty index.
func NewCategoryIndex() *CategoryIndex {
	return &CategoryIndex{byName: make(map[string]Category), nextID: 1}
}

// CategoriesFromManifest builds the categories of one record, assigning ids 1..N in manifest
// order. A repeated name replaces the earlier category but keeps its position in List.
func CategoriesFromManifest(names []string) *CategoryIndex {
	ci := NewCategoryIndex()
	for _, name := range names {
		if _, ok := ci.byName[name]; !ok {
			ci.names = append(ci.names, name)
		}
		ci.byName[name] = Category{ID: ci.nextID, Name: name, Supercategory: name}
		ci.nextID++
	}
	return ci
}

// Add merges names into the index. Unknown names get the next id, known names are left as is.
func (ci *CategoryIndex) Add(names ...string) {
	for _, name := range names {
		if _, ok := ci.byName[name]; ok {
			continue
		}
		ci.names = append(ci.names, name)
		ci.byName[name] = Category{ID: ci.nextID, Name: name, Supercategory: name}
		ci.nextID++
	}
}

// Lookup returns the category called name.
func (ci *CategoryIndex) Lookup(name string) (Category, bool) {
	c, ok := ci.byName[name]
	return c, ok
}

// List returns the categories in first-seen order.
func (ci *CategoryIndex) List() []Category {
	categories := make([]Category, 0, len(ci.names))
	for _, name := range ci.names {
		categories = append(categories, ci.byName[name])
	}
	return categories
}
