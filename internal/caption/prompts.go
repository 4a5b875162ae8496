package caption

import (
	"fmt"
	"strings"
)

// DefaultLanguage is used when no caption language is configured.
const DefaultLanguage = "ja"

// BuildPrompt builds the instruction sent alongside the image.
func BuildPrompt(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = DefaultLanguage
	}

	var sb strings.Builder
	sb.WriteString("Briefly describe what this image shows and suggest a suitable file name for it ")
	sb.WriteString(fmt.Sprintf("written in the language with code %q. ", lang))
	sb.WriteString("The file name must be at most 20 characters long, contain no special characters, ")
	sb.WriteString("and make the content easy to recognize. Do not include a file extension. ")
	sb.WriteString("Reply with the file name only.")
	return sb.String()
}
