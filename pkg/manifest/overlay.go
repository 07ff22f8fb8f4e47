package manifest

// Overlay merges child onto parent and returns a new Version. Neither input
// is modified.
//
// Child libraries are appended after the parent's. A child library whose Key
// matches an earlier library replaces it in place, so overridden entries keep
// the position of their first declaration. Child scalar fields win when set.
func Overlay(parent, child *Version) *Version {
	out := *parent
	out.Libraries = nil
	out.Traits = nil

	out.ID = child.ID
	out.InheritsFrom = child.InheritsFrom
	if child.FormatVersion != 0 {
		out.FormatVersion = child.FormatVersion
	}
	if child.Name != "" {
		out.Name = child.Name
	}
	if child.Type != "" {
		out.Type = child.Type
	}
	if child.ReleaseTime != "" {
		out.ReleaseTime = child.ReleaseTime
	}
	if child.MainClass != "" {
		out.MainClass = child.MainClass
	}
	if child.MainJar != nil {
		out.MainJar = child.MainJar
	}
	if child.Downloads != nil && child.Downloads.Client != nil {
		out.Downloads = child.Downloads
	}
	if child.AssetIndex != nil {
		out.AssetIndex = child.AssetIndex
	}
	if child.Assets != "" {
		out.Assets = child.Assets
	}
	if child.MinecraftArguments != "" {
		out.MinecraftArguments = child.MinecraftArguments
	}
	if len(child.CompatibleJavaMajors) > 0 {
		out.CompatibleJavaMajors = child.CompatibleJavaMajors
	}
	out.Arguments = mergeArguments(parent.Arguments, child.Arguments)

	out.Libraries = mergeLibraries(parent.Libraries, child.Libraries)
	out.Traits = mergeTraits(parent.Traits, child.Traits)
	return &out
}

func mergeLibraries(parent, child []Library) []Library {
	merged := make([]Library, 0, len(parent)+len(child))
	index := make(map[string]int, len(parent)+len(child))
	for _, libs := range [][]Library{parent, child} {
		for _, lib := range libs {
			key := lib.Key()
			if i, ok := index[key]; ok {
				merged[i] = lib
				continue
			}
			index[key] = len(merged)
			merged = append(merged, lib)
		}
	}
	return merged
}

func mergeArguments(parent, child *Arguments) *Arguments {
	if parent == nil && child == nil {
		return nil
	}
	out := &Arguments{}
	for _, a := range []*Arguments{parent, child} {
		if a == nil {
			continue
		}
		out.Game = append(out.Game, a.Game...)
		out.JVM = append(out.JVM, a.JVM...)
	}
	return out
}

func mergeTraits(parent, child []string) []string {
	if len(parent) == 0 && len(child) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range append(append([]string{}, parent...), child...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
