package domain

// SplitSnippets splits content into fixed-length snippets. The indexing
// pipeline uses it to bound what is sent to the embedding model; length
// is measured in runes so multi-byte text is never split mid-character.
func SplitSnippets(content string, length int) []string {
	if length <= 0 || content == "" {
		return nil
	}
	runes := []rune(content)
	snippets := make([]string, 0, (len(runes)+length-1)/length)
	for i := 0; i < len(runes); i += length {
		end := i + length
		if end > len(runes) {
			end = len(runes)
		}
		snippets = append(snippets, string(runes[i:end]))
	}
	return snippets
}
