package media

import "regexp"

// Multi-part recordings from one physical device share a file name stem
// with a trailing numeric suffix: scene_1.mp4, scene_2.mp4 -> "scene".
var basePattern = regexp.MustCompile(`^(.+?)(?:_(\d+))?\.([^.]+)$`)

// BaseName derives the grouping key for a file name. Names without a
// parseable stem fall back to the full untruncated name, which yields a
// singleton group rather than an error.
func BaseName(name string) string {
	m := basePattern.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	return m[1]
}
