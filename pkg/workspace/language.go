package workspace

import "strings"

// languageByExtension maps filename extensions to editor language tags.
// Display-only; nothing branches on the tag.
var languageByExtension = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".jsx":  "javascriptreact",
	".tsx":  "typescriptreact",
	".html": "html",
	".css":  "css",
	".json": "json",
	".md":   "markdown",
}

// LanguageForName returns the language tag for a filename.
func LanguageForName(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "plaintext"
	}
	if lang, ok := languageByExtension[strings.ToLower(name[idx:])]; ok {
		return lang
	}
	return "plaintext"
}
