package style

import "fmt"

// Namespace prefixes every tile cache key.
const Namespace = "tile:"

// CacheKey derives the cache key for a request. The same request always maps
// to the same key.
//
// Shapes:
//
//	raster     tile:{style}:{z}:{x}:{y}:{lang}
//	vector     tile:{style}:{z}:{x}:{y}        (vector tiles are language-independent)
//	composite  tile:{base}+{overlay}:{z}:{x}:{y}:{lang}
//
// Changing any of these silently fragments the cache, so the shapes are fixed.
func CacheKey(r Request) string {
	if r.IsComposite() {
		return fmt.Sprintf("%s%s+%s:%d:%d:%d:%s", Namespace, r.BaseStyle, r.Style, r.Z, r.X, r.Y, r.Language)
	}
	if FormatOf(r.Style) == FormatVector {
		return fmt.Sprintf("%s%s:%d:%d:%d", Namespace, r.Style, r.Z, r.X, r.Y)
	}
	return fmt.Sprintf("%s%s:%d:%d:%d:%s", Namespace, r.Style, r.Z, r.X, r.Y, r.Language)
}
