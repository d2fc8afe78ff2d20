package ordinance

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/rotisserie/eris"
)

var (
	tagRe        = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	mdEscapeRe   = regexp.MustCompile("\\\\([\\\\`*_{}\\[\\]()#+\\-.!|>~])")
	mdEmphasisRe = regexp.MustCompile("(\\*\\*|__|`)")
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// TextConverter flattens fetched HTML into plain text for extraction.
type TextConverter struct {
	converter *md.Converter
}

// NewTextConverter creates a TextConverter that keeps table rows readable.
func NewTextConverter() *TextConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("script", "style", "nav", "footer")
	return &TextConverter{converter: converter}
}

// Text returns content as plain text. Input without markup is returned as is.
func (c *TextConverter) Text(content string) (string, error) {
	if !tagRe.MatchString(content) {
		return strings.TrimSpace(content), nil
	}

	out, err := c.converter.ConvertString(content)
	if err != nil {
		return "", eris.Wrap(err, "ordinance: convert html")
	}

	out = mdEscapeRe.ReplaceAllString(out, "$1")
	out = mdEmphasisRe.ReplaceAllString(out, "")
	out = blankLinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out), nil
}
